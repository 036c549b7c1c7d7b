package repository

import (
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
)

// VerificationEventRepository read side of the audit log; writes happen in CompanyRepository.Transition
type VerificationEventRepository interface {
	ListByCompany(companyID uint) ([]model.VerificationEvent, error)
	ListRecent(limit int) ([]model.VerificationEvent, error)
}

type verificationEventRepository struct {
	db *gorm.DB
}

func NewVerificationEventRepository(db *gorm.DB) VerificationEventRepository {
	return &verificationEventRepository{db: db}
}

// ListByCompany events in commit order
func (r *verificationEventRepository) ListByCompany(companyID uint) ([]model.VerificationEvent, error) {
	var events []model.VerificationEvent
	if err := r.db.Where("company_id = ?", companyID).Order("id ASC").Find(&events).Error; err != nil {
		logger.Error("Failed to list verification events", err, map[string]interface{}{
			"company_id": companyID,
		})
		return nil, err
	}
	return events, nil
}

func (r *verificationEventRepository) ListRecent(limit int) ([]model.VerificationEvent, error) {
	var events []model.VerificationEvent
	if err := r.db.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		logger.Error("Failed to list recent verification events", err)
		return nil, err
	}
	return events, nil
}
