package store

import (
	"context"
	"errors"
	"time"

	"face-match-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionStorage implements fiber.Storage on the sessions table.
type SessionStorage struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionStorage(db *gorm.DB) *SessionStorage {
	return NewSessionStorageWithClock(db, time.Now)
}

func NewSessionStorageWithClock(db *gorm.DB, now func() time.Time) *SessionStorage {
	return &SessionStorage{db: db, now: func() time.Time { return now().UTC() }}
}

// Get returns nil, nil for unknown or expired keys, as fiber expects.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	var sess models.Session
	err := s.db.
		Where("id = ? AND (expires_at IS NULL OR expires_at > ?)", key, s.now()).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.Data, nil
}

func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	sess := models.Session{ID: key, Data: val}
	if exp > 0 {
		expiresAt := s.now().Add(exp)
		sess.ExpiresAt = &expiresAt
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&sess).Error
}

func (s *SessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.db.Where("id = ?", key).Delete(&models.Session{}).Error
}

func (s *SessionStorage) Reset() error {
	return s.db.Where("1 = 1").Delete(&models.Session{}).Error
}

func (s *SessionStorage) Close() error {
	return nil
}

// PurgeExpired removes sessions whose expiry has passed.
func (s *SessionStorage) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
