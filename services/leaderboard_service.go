package services

import (
	"context"

	"face-match-system/models"
)

const (
	DefaultLeaderboardLimit = 100
	MaxLeaderboardLimit     = 500
)

type LeaderboardStore interface {
	GetLeaderboard(ctx context.Context, limit int) ([]models.User, error)
}

type LeaderboardService struct {
	store LeaderboardStore
}

func NewLeaderboardService(s LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{store: s}
}

// Top returns users ranked by wins. A non-positive limit means the default.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.User, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}
	users, err := s.store.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, newError(KindStorage, "Failed to fetch leaderboard", err)
	}
	return users, nil
}
