package store

import (
	"context"
	"errors"
	"fmt"

	"face-match-system/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus is returned when a conditional match update lost against a concurrent transition.
	ErrStaleStatus = errors.New("match status changed concurrently")
)

// MatchUpdate lists the fields a transition may set. Nil fields are left untouched.
type MatchUpdate struct {
	Status       models.MatchStatus
	InvitedPhoto *string
	CreatorScore *float64
	InvitedScore *float64
}

// Repository is the persistence contract the match state machine runs against.
type Repository interface {
	CreateMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	UpdateMatch(ctx context.Context, id string, from models.MatchStatus, update MatchUpdate) (*models.Match, error)
	GetUserMatches(ctx context.Context, userID string) ([]models.Match, error)
	DeleteUserMatches(ctx context.Context, userID string) (int64, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	IncrementUserScore(ctx context.Context, userID string) error

	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

// Store is the GORM implementation of every persistence concern in the service.
type Store struct {
	DB *gorm.DB
}

var _ Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Migrate creates or updates the tables the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.Feedback{},
		&models.Session{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
