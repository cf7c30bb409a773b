package store

import (
	"context"
	"fmt"

	"face-match-system/models"
)

func (s *Store) CreateMatch(ctx context.Context, match *models.Match) error {
	if err := s.DB.WithContext(ctx).Create(match).Error; err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	if err := s.DB.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &match, nil
}

// UpdateMatch applies update only while the row is still in status from.
// A lost race surfaces as ErrStaleStatus; an unknown id as ErrNotFound.
func (s *Store) UpdateMatch(ctx context.Context, id string, from models.MatchStatus, update MatchUpdate) (*models.Match, error) {
	values := map[string]interface{}{}
	if update.Status != "" {
		values["status"] = update.Status
	}
	if update.InvitedPhoto != nil {
		values["invited_photo"] = *update.InvitedPhoto
	}
	if update.CreatorScore != nil {
		values["creator_score"] = *update.CreatorScore
	}
	if update.InvitedScore != nil {
		values["invited_score"] = *update.InvitedScore
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("update match %s: no fields to update", id)
	}

	db := s.DB.WithContext(ctx)
	result := db.Model(&models.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return nil, fmt.Errorf("update match %s: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := s.GetMatch(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}

	return s.GetMatch(ctx, id)
}

// GetUserMatches returns every match the user takes part in, newest first.
func (s *Store) GetUserMatches(ctx context.Context, userID string) ([]models.Match, error) {
	var matches []models.Match
	err := s.DB.WithContext(ctx).
		Where("creator_id = ? OR invited_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", userID, err)
	}
	return matches, nil
}

func (s *Store) DeleteUserMatches(ctx context.Context, userID string) (int64, error) {
	result := s.DB.WithContext(ctx).
		Where("creator_id = ? OR invited_id = ?", userID, userID).
		Delete(&models.Match{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete matches for %s: %w", userID, result.Error)
	}
	return result.RowsAffected, nil
}
