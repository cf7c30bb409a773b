package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"face-match-system/logging"
	"face-match-system/metrics"
	"face-match-system/models"

	"go.uber.org/zap"
)

const (
	maxPendingFeedback = 1000

	FeedbackSavedMessage    = "Feedback submitted successfully"
	FeedbackDeferredMessage = "Feedback received (will be saved when database is available)"
)

type FeedbackStore interface {
	SaveFeedback(ctx context.Context, feedback *models.Feedback) error
}

type FeedbackInput struct {
	Feedback string  `json:"feedback"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Message  *string `json:"message"`
}

// FeedbackReceipt tells the caller whether the entry reached the database yet.
type FeedbackReceipt struct {
	Feedback  *models.Feedback `json:"feedback"`
	Persisted bool             `json:"persisted"`
	Message   string           `json:"message"`
}

// FeedbackService saves feedback. When the database is down entries are queued
// in memory and retried by FlushPending; the oldest are dropped past the cap.
type FeedbackService struct {
	store   FeedbackStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	pending []*models.Feedback
}

func NewFeedbackService(s FeedbackStore, logger *zap.Logger, m *metrics.Metrics) *FeedbackService {
	return &FeedbackService{
		store:   s,
		logger:  logging.OrNop(logger),
		metrics: m,
		now:     time.Now,
	}
}

// Submit records feedback from actorID, which may be empty for anonymous users.
func (s *FeedbackService) Submit(ctx context.Context, actorID string, in FeedbackInput) (*FeedbackReceipt, error) {
	text := strings.TrimSpace(in.Feedback)
	if text == "" {
		return nil, newError(KindValidation, "Feedback text is required", nil)
	}

	fb := &models.Feedback{
		Feedback:  text,
		Name:      trimmed(in.Name),
		Email:     trimmed(in.Email),
		Message:   trimmed(in.Message),
		CreatedAt: s.now().UTC(),
	}
	if actorID != "" {
		fb.UserID = &actorID
	}

	if err := s.store.SaveFeedback(ctx, fb); err != nil {
		s.logger.Warn("feedback save failed, queued for retry", zap.Error(err))
		s.enqueue(fb)
		return &FeedbackReceipt{Feedback: fb, Persisted: false, Message: FeedbackDeferredMessage}, nil
	}
	return &FeedbackReceipt{Feedback: fb, Persisted: true, Message: FeedbackSavedMessage}, nil
}

// FlushPending retries queued entries in order and stops at the first failure.
func (s *FeedbackService) FlushPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	saved := 0
	for i, fb := range batch {
		if err := s.store.SaveFeedback(ctx, fb); err != nil {
			s.requeue(batch[i:])
			return saved, err
		}
		saved++
	}
	s.metrics.SetFeedbackPending(s.Pending())
	if saved > 0 {
		s.logger.Info("flushed pending feedback", zap.Int("count", saved))
	}
	return saved, nil
}

func (s *FeedbackService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *FeedbackService) enqueue(fb *models.Feedback) {
	s.mu.Lock()
	s.pending = append(s.pending, fb)
	if over := len(s.pending) - maxPendingFeedback; over > 0 {
		s.pending = s.pending[over:]
	}
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.SetFeedbackPending(n)
}

// requeue puts unsaved entries back ahead of anything queued during the flush.
func (s *FeedbackService) requeue(rest []*models.Feedback) {
	s.mu.Lock()
	s.pending = append(append([]*models.Feedback(nil), rest...), s.pending...)
	if over := len(s.pending) - maxPendingFeedback; over > 0 {
		s.pending = s.pending[over:]
	}
	n := len(s.pending)
	s.mu.Unlock()
	s.metrics.SetFeedbackPending(n)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
