package models

import (
	"math"
	"time"
)

// MatchStatus is the lifecycle state of a two-party photo match.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusReady     MatchStatus = "ready"
	MatchStatusDeclined  MatchStatus = "declined"
	MatchStatusCompleted MatchStatus = "completed"
)

// Terminal reports whether no further transition is allowed from s.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusDeclined || s == MatchStatusCompleted
}

// Match is a challenge between a creator and an invited user.
// Photos hold a photo store reference (inline base64 or an object URL).
type Match struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatorID    string      `gorm:"index;not null;type:varchar(36)" json:"creatorId"`
	InvitedID    string      `gorm:"index;not null;type:varchar(36)" json:"invitedId"`
	CreatorPhoto string      `gorm:"type:text;not null" json:"creatorPhoto"`
	InvitedPhoto *string     `gorm:"type:text" json:"invitedPhoto"`
	CreatorScore *float64    `gorm:"type:decimal(10,3)" json:"creatorScore"`
	InvitedScore *float64    `gorm:"type:decimal(10,3)" json:"invitedScore"`
	Status       MatchStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt    time.Time   `gorm:"not null;index" json:"createdAt"`
}

// HasParty reports whether userID is the creator or the invited user.
func (m *Match) HasParty(userID string) bool {
	return m.CreatorID == userID || m.InvitedID == userID
}

// RoundScore truncates a provider score to the three fractional digits the schema stores.
func RoundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}
