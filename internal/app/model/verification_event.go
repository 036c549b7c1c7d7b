package model

import "time"

// ActorSystem actor recorded for evaluator-driven transitions
const ActorSystem = "system"

// VerificationEvent 검증 상태 변경 감사 로그 (append-only)
type VerificationEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	CompanyID uint `gorm:"not null;index" json:"company_id"`

	FromStatus VerificationStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   VerificationStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor      string             `gorm:"type:varchar(100);not null" json:"actor"`
	Reason     string             `gorm:"type:text" json:"reason,omitempty"`
}

func (VerificationEvent) TableName() string {
	return "verification_events"
}
