package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"face-match-system/broadcast"
	"face-match-system/logging"
	"face-match-system/metrics"
	"face-match-system/models"
	"face-match-system/photos"
	"face-match-system/scoring"
	"face-match-system/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchDeps are the collaborators of MatchService. Broadcaster, Metrics and Logger may be nil.
type MatchDeps struct {
	Repo        store.Repository
	Photos      photos.Store
	Scorer      scoring.Provider
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	// Pacing is the pause between the creator's and the invitee's scoring call.
	Pacing time.Duration
	Now    func() time.Time
}

// MatchService owns every match transition. It is the only code that mutates matches.
type MatchService struct {
	repo        store.Repository
	photos      photos.Store
	scorer      scoring.Provider
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
	pacing      time.Duration
	now         func() time.Time
}

// CompareResult is the outcome of a completed comparison. WinnerID is empty on a tie.
type CompareResult struct {
	Match        *models.Match `json:"match"`
	CreatorScore float64       `json:"creatorScore"`
	InvitedScore float64       `json:"invitedScore"`
	WinnerID     string        `json:"winnerId,omitempty"`
	Tie          bool          `json:"tie"`
}

func NewMatchService(deps MatchDeps) *MatchService {
	s := &MatchService{
		repo:        deps.Repo,
		photos:      deps.Photos,
		scorer:      deps.Scorer,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		logger:      logging.OrNop(deps.Logger),
		pacing:      deps.Pacing,
		now:         deps.Now,
	}
	if s.broadcaster == nil {
		s.broadcaster = broadcast.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create opens a pending match from actorID to invitedUsername.
func (s *MatchService) Create(ctx context.Context, actorID, invitedUsername string, photo *photos.Upload) (*models.Match, error) {
	if actorID == "" {
		return nil, errAuthRequired
	}
	invitedUsername = strings.TrimSpace(invitedUsername)
	if invitedUsername == "" {
		return nil, newError(KindValidation, "Invited username is required", nil)
	}
	if photo == nil || len(photo.Data) == 0 {
		return nil, newError(KindValidation, "Photo is required", nil)
	}

	creator, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errAuthRequired
		}
		return nil, newError(KindStorage, "Failed to create match", err)
	}

	invited, err := s.repo.GetUserByUsername(ctx, invitedUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "Invited user not found", err)
		}
		return nil, newError(KindStorage, "Failed to create match", err)
	}

	ref, err := s.photos.Put(ctx, creator.Username, photo)
	if err != nil {
		return nil, newError(KindStorage, "Failed to store photo", err)
	}

	match := &models.Match{
		ID:           uuid.New().String(),
		CreatorID:    creator.ID,
		InvitedID:    invited.ID,
		CreatorPhoto: ref,
		Status:       models.MatchStatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateMatch(ctx, match); err != nil {
		s.discardPhoto(ctx, ref)
		return nil, newError(KindStorage, "Failed to create match", err)
	}

	s.committed(ctx, broadcast.EventMatchCreated, match)
	return match, nil
}

// Respond lets the invited user accept (with a photo) or decline a pending match.
func (s *MatchService) Respond(ctx context.Context, actorID, matchID string, accept bool, photo *photos.Upload) (*models.Match, error) {
	if actorID == "" {
		return nil, errAuthRequired
	}
	match, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.InvitedID != actorID {
		return nil, newError(KindForbidden, "Only the invited user can respond to this match", nil)
	}
	if match.Status != models.MatchStatusPending {
		return nil, newError(KindInvalidState, "Match has already been responded to", nil)
	}

	update := store.MatchUpdate{Status: models.MatchStatusDeclined}
	if accept {
		if photo == nil || len(photo.Data) == 0 {
			return nil, newError(KindValidation, "Photo is required to accept a match", nil)
		}
		owner := actorID
		if invited, err := s.repo.GetUser(ctx, actorID); err == nil {
			owner = invited.Username
		}
		ref, err := s.photos.Put(ctx, owner, photo)
		if err != nil {
			return nil, newError(KindStorage, "Failed to store photo", err)
		}
		update = store.MatchUpdate{Status: models.MatchStatusReady, InvitedPhoto: &ref}
	}

	updated, err := s.repo.UpdateMatch(ctx, matchID, models.MatchStatusPending, update)
	if err != nil {
		if update.InvitedPhoto != nil {
			s.discardPhoto(ctx, *update.InvitedPhoto)
		}
		return nil, transitionError(err, "Match has already been responded to")
	}

	s.committed(ctx, broadcast.EventMatchUpdated, updated)
	return updated, nil
}

// Compare scores both photos of a ready match, one after the other, and completes it.
// Any scoring failure leaves the match ready.
func (s *MatchService) Compare(ctx context.Context, actorID, matchID string) (*CompareResult, error) {
	if actorID == "" {
		return nil, errAuthRequired
	}
	match, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.CreatorID != actorID {
		return nil, newError(KindForbidden, "Only the match creator can compare photos", nil)
	}
	if match.Status != models.MatchStatusReady {
		return nil, newError(KindInvalidState, "Match is not ready for comparison", nil)
	}
	if match.InvitedPhoto == nil {
		return nil, newError(KindUnexpected, "Match is missing the invited photo", nil)
	}

	logger := s.logger.With(zap.String("match_id", matchID))

	creatorScore, err := s.scorePhoto(ctx, match.CreatorPhoto)
	if err != nil {
		logger.Warn("creator photo scoring failed", zap.Error(err))
		return nil, err
	}

	if s.pacing > 0 {
		select {
		case <-ctx.Done():
			return nil, newError(KindUnexpected, "Comparison cancelled", ctx.Err())
		case <-time.After(s.pacing):
		}
	}

	invitedScore, err := s.scorePhoto(ctx, *match.InvitedPhoto)
	if err != nil {
		logger.Warn("invited photo scoring failed", zap.Error(err))
		return nil, err
	}

	creatorScore = models.RoundScore(creatorScore)
	invitedScore = models.RoundScore(invitedScore)

	winnerID := ""
	switch {
	case creatorScore > invitedScore:
		winnerID = match.CreatorID
	case invitedScore > creatorScore:
		winnerID = match.InvitedID
	}

	var completed *models.Match
	err = s.repo.Transaction(ctx, func(tx store.Repository) error {
		m, err := tx.UpdateMatch(ctx, matchID, models.MatchStatusReady, store.MatchUpdate{
			Status:       models.MatchStatusCompleted,
			CreatorScore: &creatorScore,
			InvitedScore: &invitedScore,
		})
		if err != nil {
			return err
		}
		if winnerID != "" {
			if err := tx.IncrementUserScore(ctx, winnerID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return errWinnerMissing
				}
				return err
			}
		}
		completed = m
		return nil
	})
	if errors.Is(err, errWinnerMissing) {
		logger.Error("winner account missing, match left ready", zap.String("winner_id", winnerID))
		return nil, newError(KindUnexpected, "Winner account no longer exists", err)
	}
	if err != nil {
		return nil, transitionError(err, "Match has already been compared")
	}

	logger.Info("match completed",
		zap.Float64("creator_score", creatorScore),
		zap.Float64("invited_score", invitedScore),
		zap.String("winner_id", winnerID),
	)
	s.committed(ctx, broadcast.EventMatchUpdated, completed)

	return &CompareResult{
		Match:        completed,
		CreatorScore: creatorScore,
		InvitedScore: invitedScore,
		WinnerID:     winnerID,
		Tie:          winnerID == "",
	}, nil
}

// Get returns a match visible to actorID. Only the two parties may view it.
func (s *MatchService) Get(ctx context.Context, actorID, matchID string) (*models.Match, error) {
	if actorID == "" {
		return nil, errAuthRequired
	}
	match, err := s.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParty(actorID) {
		return nil, errNotParty
	}
	return match, nil
}

func (s *MatchService) ListForUser(ctx context.Context, actorID string) ([]models.Match, error) {
	if actorID == "" {
		return nil, errAuthRequired
	}
	matches, err := s.repo.GetUserMatches(ctx, actorID)
	if err != nil {
		return nil, newError(KindStorage, "Failed to fetch matches", err)
	}
	return matches, nil
}

// DeleteAllForUser removes every match actorID takes part in. Nothing is broadcast.
func (s *MatchService) DeleteAllForUser(ctx context.Context, actorID string) (int64, error) {
	if actorID == "" {
		return 0, errAuthRequired
	}
	n, err := s.repo.DeleteUserMatches(ctx, actorID)
	if err != nil {
		return 0, newError(KindStorage, "Failed to delete matches", err)
	}
	s.logger.Info("matches deleted", zap.String("user_id", actorID), zap.Int64("count", n))
	return n, nil
}

func (s *MatchService) load(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "Match not found", err)
		}
		return nil, newError(KindStorage, "Failed to fetch match", err)
	}
	return match, nil
}

func (s *MatchService) scorePhoto(ctx context.Context, ref string) (float64, error) {
	data, err := s.photos.Get(ctx, ref)
	if err != nil {
		return 0, newError(KindStorage, "Failed to load photo", err)
	}
	score, err := s.scorer.Score(ctx, data)
	if err != nil {
		return 0, scoringError(err)
	}
	return score, nil
}

// discardPhoto removes a photo whose match row was never written.
func (s *MatchService) discardPhoto(ctx context.Context, ref string) {
	if err := s.photos.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete orphaned photo", zap.Error(err))
	}
}

func (s *MatchService) committed(ctx context.Context, t broadcast.EventType, match *models.Match) {
	s.metrics.Transition(string(match.Status))
	s.logger.Info("match transition",
		zap.String("match_id", match.ID),
		zap.String("status", string(match.Status)),
	)
	s.broadcaster.Broadcast(ctx, broadcast.NewMatchEvent(t, match))
}

func transitionError(err error, staleMsg string) error {
	switch {
	case errors.Is(err, store.ErrStaleStatus):
		return newError(KindInvalidState, staleMsg, err)
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "Match not found", err)
	default:
		return newError(KindStorage, "Failed to update match", err)
	}
}

func scoringError(err error) error {
	var se *scoring.Error
	msg := ""
	if errors.As(err, &se) {
		msg = se.Message
	}
	switch scoring.KindOf(err) {
	case scoring.KindContent:
		if msg == "" {
			msg = "The photo could not be analyzed"
		}
		return newError(KindContent, msg, err)
	case scoring.KindTransient:
		return newError(KindTransient, "Scoring service is busy, please try again later", err)
	default:
		return newError(KindUnexpected, "Failed to compare photos", err)
	}
}
