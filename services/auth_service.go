package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"face-match-system/logging"
	"face-match-system/models"
	"face-match-system/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"
	"gorm.io/gorm"
)

// scrypt parameters match the hashes already stored as "<hex key>.<hex salt>".
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltBytes    = 16
)

// UserStore is the account persistence AuthService needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type AuthService struct {
	users  UserStore
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users UserStore, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, logger: logging.OrNop(logger), now: time.Now}
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AcceptPolicy bool   `json:"acceptPolicy"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, newError(KindValidation, "Username and password are required", nil)
	}
	if !in.AcceptPolicy {
		return nil, newError(KindValidation, "You must accept the privacy policy", nil)
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, newError(KindConflict, "Username already exists", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindStorage, "Failed to register", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, newError(KindUnexpected, "Failed to register", err)
	}

	user := &models.User{
		ID:        uuid.New().String(),
		Username:  username,
		Password:  hash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(KindConflict, "Username already exists", err)
		}
		return nil, newError(KindStorage, "Failed to register", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials. Unknown users and wrong passwords get the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	invalid := newError(KindAuthenticationRequired, "Invalid username or password", nil)

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid
		}
		return nil, newError(KindStorage, "Failed to log in", err)
	}

	ok, err := ComparePassword(password, user.Password)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, invalid
	}
	if !ok {
		return nil, invalid
	}
	return user, nil
}

// User resolves a session's user id.
func (s *AuthService) User(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, errAuthRequired
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errAuthRequired
		}
		return nil, newError(KindStorage, "Failed to load user", err)
	}
	return user, nil
}

// HashPassword returns "<hex key>.<hex salt>". The hex salt string itself is the scrypt salt.
func HashPassword(password string) (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hex.EncodeToString(key) + "." + salt, nil
}

// ComparePassword checks supplied against a stored hash in constant time.
func ComparePassword(supplied, stored string) (bool, error) {
	hashed, salt, ok := strings.Cut(stored, ".")
	if !ok || salt == "" {
		return false, errors.New("malformed password hash")
	}
	want, err := hex.DecodeString(hashed)
	if err != nil {
		return false, fmt.Errorf("decode password hash: %w", err)
	}

	got, err := scrypt.Key([]byte(supplied), []byte(salt), scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
