package repository

import (
	"errors"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryStreakRepository per-recipient consecutive delivery failures
type DeliveryStreakRepository interface {
	RecordFailure(recipient string) (int, error)
	Reset(recipient string) error
	Get(recipient string) (int, error)
}

type deliveryStreakRepository struct {
	db *gorm.DB
}

func NewDeliveryStreakRepository(db *gorm.DB) DeliveryStreakRepository {
	return &deliveryStreakRepository{db: db}
}

// RecordFailure increments the streak and returns the new value
func (r *deliveryStreakRepository) RecordFailure(recipient string) (int, error) {
	now := time.Now()
	var streak model.DeliveryStreak

	err := r.db.Transaction(func(tx *gorm.DB) error {
		row := model.DeliveryStreak{
			Recipient:           recipient,
			ConsecutiveFailures: 1,
			LastFailureAt:       &now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "recipient"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"consecutive_failures": gorm.Expr("delivery_streaks.consecutive_failures + 1"),
				"last_failure_at":      now,
				"updated_at":           now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("recipient = ?", recipient).First(&streak).Error
	})
	if err != nil {
		logger.Error("Failed to record delivery failure", err, map[string]interface{}{
			"recipient": recipient,
		})
		return 0, err
	}
	return streak.ConsecutiveFailures, nil
}

func (r *deliveryStreakRepository) Reset(recipient string) error {
	err := r.db.Model(&model.DeliveryStreak{}).
		Where("recipient = ?", recipient).
		Updates(map[string]interface{}{
			"consecutive_failures": 0,
			"updated_at":           time.Now(),
		}).Error
	if err != nil {
		logger.Error("Failed to reset delivery streak", err, map[string]interface{}{
			"recipient": recipient,
		})
	}
	return err
}

func (r *deliveryStreakRepository) Get(recipient string) (int, error) {
	var streak model.DeliveryStreak
	err := r.db.Where("recipient = ?", recipient).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return streak.ConsecutiveFailures, nil
}
