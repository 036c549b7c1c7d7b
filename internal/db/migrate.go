package db

import (
	"errors"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"gorm.io/gorm"
)

// Models every table owned by the backend, in migration order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Company{},
		&model.VerificationEvent{},
		&model.CRMAlert{},
		&model.DeliveryStreak{},
	}
}

// Migrate runs database migrations and bootstraps the admin account
func Migrate(admin *config.AdminConfig) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if admin != nil {
		if err := EnsureAdmin(DB, admin); err != nil {
			logger.Error("Failed to bootstrap admin account", err)
			return err
		}
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// EnsureAdmin creates the configured admin user if it does not exist yet.
// An empty email or password skips the bootstrap.
func EnsureAdmin(db *gorm.DB, admin *config.AdminConfig) error {
	if admin.Email == "" || admin.Password == "" {
		logger.Debug("Admin bootstrap not configured, skipping")
		return nil
	}

	var existing model.User
	err := db.Where("email = ?", admin.Email).First(&existing).Error
	if err == nil {
		logger.Debug("Admin account already exists", map[string]interface{}{
			"email": admin.Email,
		})
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := util.HashPassword(admin.Password)
	if err != nil {
		return err
	}

	user := &model.User{
		Email:        admin.Email,
		PasswordHash: hash,
		Name:         admin.Name,
		Role:         model.RoleAdmin,
	}
	if err := db.Create(user).Error; err != nil {
		return err
	}

	logger.Info("Admin account created", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}
