package store

import (
	"context"
	"fmt"

	"face-match-system/models"
)

func (s *Store) SaveFeedback(ctx context.Context, feedback *models.Feedback) error {
	if err := s.DB.WithContext(ctx).Create(feedback).Error; err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}
