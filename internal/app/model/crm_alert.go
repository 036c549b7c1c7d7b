package model

import "time"

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// IsValid reports whether s is a known severity
func (s AlertSeverity) IsValid() bool {
	return s == AlertSeverityInfo || s == AlertSeverityWarning || s == AlertSeverityCritical
}

type AlertType string

const (
	AlertTypeCompanyRejected     AlertType = "company_rejected"
	AlertTypeReviewReopened      AlertType = "review_reopened"
	AlertTypeDeliveryFailed      AlertType = "delivery_failed"
	AlertTypeTaxIDInvalid        AlertType = "tax_id_invalid"
	AlertTypeVerificationStale   AlertType = "verification_stale"
	AlertTypeNotificationBacklog AlertType = "notification_backlog"
)

// CRMAlert 관리자용 CRM 알림. 삭제 없음, 확인(acknowledge)만 가능
type CRMAlert struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	Severity  AlertSeverity `gorm:"type:varchar(20);not null;index" json:"severity"`
	AlertType AlertType     `gorm:"type:varchar(50);not null;index" json:"alert_type"`
	Title     string        `gorm:"type:varchar(200);not null" json:"title"`
	Message   string        `gorm:"type:text" json:"message"`

	RelatedCompanyID *uint `gorm:"index" json:"related_company_id,omitempty"`

	Acknowledged   bool       `gorm:"not null;default:false;index" json:"acknowledged"`
	AcknowledgedBy *uint      `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

func (CRMAlert) TableName() string {
	return "crm_alerts"
}

// CRMAlertFilter list filter; nil fields are not applied
type CRMAlertFilter struct {
	Severity     *AlertSeverity
	Acknowledged *bool
	CompanyID    *uint
}
