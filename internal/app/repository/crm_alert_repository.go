package repository

import (
	"errors"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CRMAlertRepository interface {
	Create(alert *model.CRMAlert) error
	FindByID(id uint) (*model.CRMAlert, error)
	List(filter model.CRMAlertFilter, limit, offset int) ([]model.CRMAlert, int64, error)
	Acknowledge(id, adminID uint, at time.Time) (*model.CRMAlert, error)
	CountUnacknowledged() (int64, error)
	ExistsOpen(alertType model.AlertType, companyID uint) (bool, error)
}

type crmAlertRepository struct {
	db *gorm.DB
}

func NewCRMAlertRepository(db *gorm.DB) CRMAlertRepository {
	return &crmAlertRepository{db: db}
}

func (r *crmAlertRepository) Create(alert *model.CRMAlert) error {
	if err := r.db.Create(alert).Error; err != nil {
		logger.Error("Failed to create CRM alert", err, map[string]interface{}{
			"alert_type": alert.AlertType,
			"severity":   alert.Severity,
		})
		return err
	}

	logger.Debug("CRM alert created", map[string]interface{}{
		"alert_id":   alert.ID,
		"alert_type": alert.AlertType,
		"severity":   alert.Severity,
	})
	return nil
}

func (r *crmAlertRepository) FindByID(id uint) (*model.CRMAlert, error) {
	var alert model.CRMAlert
	if err := r.db.First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// List newest first
func (r *crmAlertRepository) List(filter model.CRMAlertFilter, limit, offset int) ([]model.CRMAlert, int64, error) {
	query := r.db.Model(&model.CRMAlert{})
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	if filter.Acknowledged != nil {
		query = query.Where("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.CompanyID != nil {
		query = query.Where("related_company_id = ?", *filter.CompanyID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count CRM alerts", err)
		return nil, 0, err
	}

	var alerts []model.CRMAlert
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&alerts).Error; err != nil {
		logger.Error("Failed to list CRM alerts", err)
		return nil, 0, err
	}
	return alerts, total, nil
}

// Acknowledge marks the alert read. An already acknowledged alert is returned unchanged.
func (r *crmAlertRepository) Acknowledge(id, adminID uint, at time.Time) (*model.CRMAlert, error) {
	var alert model.CRMAlert
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&alert, id).Error; err != nil {
			return err
		}
		if alert.Acknowledged {
			return nil
		}

		alert.Acknowledged = true
		alert.AcknowledgedBy = &adminID
		alert.AcknowledgedAt = &at
		return tx.Model(&model.CRMAlert{}).Where("id = ?", id).Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_by": adminID,
			"acknowledged_at": at,
		}).Error
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to acknowledge CRM alert", err, map[string]interface{}{
				"alert_id": id,
			})
		}
		return nil, err
	}
	return &alert, nil
}

func (r *crmAlertRepository) CountUnacknowledged() (int64, error) {
	var count int64
	if err := r.db.Model(&model.CRMAlert{}).Where("acknowledged = ?", false).Count(&count).Error; err != nil {
		logger.Error("Failed to count unacknowledged CRM alerts", err)
		return 0, err
	}
	return count, nil
}

// ExistsOpen reports an unacknowledged alert of the type for the company
func (r *crmAlertRepository) ExistsOpen(alertType model.AlertType, companyID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.CRMAlert{}).
		Where("alert_type = ? AND related_company_id = ? AND acknowledged = ?", alertType, companyID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
