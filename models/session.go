package models

import "time"

// Session backs the fiber session store. A nil ExpiresAt never expires.
type Session struct {
	ID        string     `gorm:"primaryKey;type:varchar(128)"`
	Data      []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
}
