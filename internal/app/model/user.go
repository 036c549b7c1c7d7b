package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string // 사용자 권한 타입

const (
	RoleAdmin  UserRole = "admin"  // 관리자 콘솔 권한
	RoleViewer UserRole = "viewer" // 읽기 전용, 콘솔 로그인 불가
)

// User 관리자 콘솔 계정
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Role         UserRole       `gorm:"type:varchar(20);default:'admin'" json:"role"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// ActorName identifier written into VerificationEvent.Actor for admin decisions
func (u *User) ActorName() string {
	return "admin:" + u.Email
}
