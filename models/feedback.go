package models

import "time"

// Feedback is an append-only free-form note, optionally tied to a user.
type Feedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *string   `gorm:"index;type:varchar(36)" json:"userId"`
	Feedback  string    `gorm:"type:text;not null" json:"feedback"`
	Name      *string   `json:"name"`
	Email     *string   `json:"email"`
	Message   *string   `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// TableName keeps the singular table name the original schema used.
func (Feedback) TableName() string {
	return "feedback"
}
