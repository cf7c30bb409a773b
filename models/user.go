package models

import (
	"time"
)

// User is an account. Score counts match wins and only grows.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Score     int       `gorm:"not null;default:0;index" json:"score"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
