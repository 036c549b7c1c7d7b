package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *model.User) error
	FindByID(id uint) (*model.User, error)
	FindByEmail(email string) (*model.User, error)
	UpdateLastLogin(id uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = model.RoleAdmin
	}

	if err := r.db.Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Info("Console user created", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})
	return nil
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find user by ID in database", err, map[string]interface{}{
				"user_id": id,
			})
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail matches case-insensitively; unknown emails are not logged as errors
func (r *userRepository) FindByEmail(email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user model.User
	err := r.db.Where("LOWER(email) = ?", email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find user by email in database", err, map[string]interface{}{
				"email": email,
			})
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateLastLogin(id uint, at time.Time) error {
	err := r.db.Model(&model.User{}).Where("id = ?", id).Update("last_login_at", at).Error
	if err != nil {
		logger.Error("Failed to update last login", err, map[string]interface{}{
			"user_id": id,
		})
	}
	return err
}
