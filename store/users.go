package store

import (
	"context"
	"fmt"

	"face-match-system/models"

	"gorm.io/gorm"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// IncrementUserScore adds one win in a single UPDATE so concurrent winners never lose increments.
func (s *Store) IncrementUserScore(ctx context.Context, userID string) error {
	result := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("score", gorm.Expr("score + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("increment score for %s: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLeaderboard ranks users by wins. Equal scores are ordered by id so pages stay stable.
func (s *Store) GetLeaderboard(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Order("score DESC").
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return users, nil
}
