package model

import "time"

// DeliveryStreak 수신자별 연속 메일 발송 실패 횟수
type DeliveryStreak struct {
	ID                  uint       `gorm:"primarykey" json:"id"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Recipient           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"recipient"`
	ConsecutiveFailures int        `gorm:"not null;default:0" json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

func (DeliveryStreak) TableName() string {
	return "delivery_streaks"
}
