package model

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// VerificationStatus B2B 파트너 검증 상태
type VerificationStatus string

const (
	VerificationStatusPending      VerificationStatus = "pending"
	VerificationStatusAutoApproved VerificationStatus = "auto_approved" // 중간 단계, 같은 커밋에서 approved로 승격
	VerificationStatusNeedsReview  VerificationStatus = "needs_review"
	VerificationStatusAutoRejected VerificationStatus = "auto_rejected" // 중간 단계, 같은 커밋에서 rejected로 승격
	VerificationStatusApproved     VerificationStatus = "approved"
	VerificationStatusRejected     VerificationStatus = "rejected"
)

// IsTerminal approved/rejected
func (s VerificationStatus) IsTerminal() bool {
	return s == VerificationStatusApproved || s == VerificationStatusRejected
}

// IsValid reports whether s is one of the known statuses
func (s VerificationStatus) IsValid() bool {
	switch s {
	case VerificationStatusPending, VerificationStatusAutoApproved, VerificationStatusNeedsReview,
		VerificationStatusAutoRejected, VerificationStatusApproved, VerificationStatusRejected:
		return true
	}
	return false
}

// Company B2B 파트너 회사. 상태는 VerificationService를 통해서만 변경된다.
type Company struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 식별 정보
	LegalName    string `gorm:"type:varchar(255);not null" json:"legal_name"`
	TaxID        string `gorm:"type:varchar(50);not null;index;uniqueIndex:idx_companies_active_tax_id,priority:2" json:"tax_id"` // 정규화된 값 (대문자, 구분자 제거)
	CountryCode  string `gorm:"type:varchar(16);not null;index;uniqueIndex:idx_companies_active_tax_id,priority:1,where:verification_status <> 'rejected'" json:"country_code"`
	ContactEmail string `gorm:"type:varchar(255);not null" json:"contact_email"`
	Website      string `gorm:"type:varchar(255)" json:"website,omitempty"`

	// 증빙 서류 (S3 object key 목록)
	DocumentRefs StringList `json:"document_refs"`

	// 검증 상태
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"verification_status"`
	VerificationNotes  string             `gorm:"type:text" json:"verification_notes,omitempty"`
	SubmittedAt        time.Time          `gorm:"not null" json:"submitted_at"`
	DecidedAt          *time.Time         `json:"decided_at,omitempty"`
	LastRecheckedAt    *time.Time         `json:"last_rechecked_at,omitempty"`

	// 낙관적 잠금 카운터, 상태 전이마다 +1
	Version int `gorm:"not null;default:1" json:"version"`
}

func (Company) TableName() string {
	return "companies"
}

// CompanySubmission 등록 접수 데이터 (평가기 입력)
type CompanySubmission struct {
	LegalName    string   `json:"legal_name"`
	TaxID        string   `json:"tax_id"`
	CountryCode  string   `json:"country_code"`
	ContactEmail string   `json:"contact_email"`
	Website      string   `json:"website"`
	DocumentRefs []string `json:"document_refs"`
}

// Submission rebuilds the evaluator input from a stored company
func (c *Company) Submission() CompanySubmission {
	return CompanySubmission{
		LegalName:    c.LegalName,
		TaxID:        c.TaxID,
		CountryCode:  c.CountryCode,
		ContactEmail: c.ContactEmail,
		Website:      c.Website,
		DocumentRefs: []string(c.DocumentRefs),
	}
}

// StringList postgres text[] 컬럼 (sqlite 테스트 DB에서는 text로 저장)
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(src interface{}) error {
	return (*pq.StringArray)(l).Scan(src)
}

// GormDataType schema 파싱용 타입 이름. 실제 컬럼 타입은 GormDBDataType이 dialect별로 정한다
func (StringList) GormDataType() string {
	return "text[]"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}
