package scoring

import (
	"context"
	"fmt"
	"time"

	"face-match-system/logging"
	"face-match-system/metrics"

	"go.uber.org/zap"
)

const (
	defaultRetryAttempts = 3
	defaultBackoff       = time.Second
)

type backoffFunc func(attempt int) time.Duration

// RetryingProvider retries transient provider failures with linearly growing delays.
type RetryingProvider struct {
	inner       Provider
	logger      *zap.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoffFn   backoffFunc
}

// NewRetryingProvider wraps inner. If maxAttempts/backoff are <= 0, defaults are used.
func NewRetryingProvider(inner Provider, logger *zap.Logger, m *metrics.Metrics, maxAttempts int, backoff time.Duration) *RetryingProvider {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &RetryingProvider{
		inner:       inner,
		logger:      logging.OrNop(logger),
		metrics:     m,
		maxAttempts: maxAttempts,
		backoffFn: func(attempt int) time.Duration {
			return time.Duration(attempt) * backoff
		},
	}
}

func (r *RetryingProvider) Score(ctx context.Context, photo []byte) (float64, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		score, err := r.inner.Score(ctx, photo)
		if err == nil {
			r.metrics.ScoringAttempt("ok")
			return score, nil
		}
		lastErr = err

		kind := KindOf(err)
		r.metrics.ScoringAttempt(kind.String())
		if kind != KindTransient {
			return 0, err
		}

		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("score provider retry",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		)

		delay := r.backoffFn(attempt)
		select {
		case <-ctx.Done():
			return 0, UnexpectedError("scoring cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}

	r.logger.Warn("score provider failed", zap.Int("attempts", r.maxAttempts), zap.Error(lastErr))
	return 0, TransientError(fmt.Sprintf("scoring failed after %d attempts", r.maxAttempts), lastErr)
}
