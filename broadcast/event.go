package broadcast

import (
	"context"
	"time"

	"face-match-system/models"
)

type EventType string

const (
	EventMatchCreated EventType = "match_created"
	EventMatchUpdated EventType = "match_updated"
	// EventConnected is sent once to a freshly attached observer.
	EventConnected EventType = "connected"
)

// MatchSummary is the observer-facing view of a match. Photos are left out; clients re-fetch.
type MatchSummary struct {
	ID           string             `json:"id"`
	CreatorID    string             `json:"creatorId"`
	InvitedID    string             `json:"invitedId"`
	Status       models.MatchStatus `json:"status"`
	CreatorScore *float64           `json:"creatorScore"`
	InvitedScore *float64           `json:"invitedScore"`
	CreatedAt    time.Time          `json:"createdAt"`
}

type Event struct {
	Type  EventType     `json:"type"`
	Match *MatchSummary `json:"match,omitempty"`
}

// NewMatchEvent snapshots m into an event of type t.
func NewMatchEvent(t EventType, m *models.Match) Event {
	return Event{
		Type: t,
		Match: &MatchSummary{
			ID:           m.ID,
			CreatorID:    m.CreatorID,
			InvitedID:    m.InvitedID,
			Status:       m.Status,
			CreatorScore: m.CreatorScore,
			InvitedScore: m.InvitedScore,
			CreatedAt:    m.CreatedAt,
		},
	}
}

// Broadcaster notifies connected observers after a committed match change.
// Delivery is best effort; implementations never report failure to the caller.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Broadcast(context.Context, Event) {}
