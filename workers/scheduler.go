package workers

import (
	"context"
	"fmt"
	"time"

	"face-match-system/logging"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// JobFunc is one run of a periodic job. The context is cancelled on Shutdown.
type JobFunc func(ctx context.Context) error

// Scheduler runs housekeeping jobs on fixed intervals. A run never overlaps the previous one.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{sched: sched, logger: logging.OrNop(logger), ctx: ctx, cancel: cancel}, nil
}

// Every registers fn to run immediately on Start and then once per interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, interval)
	}

	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			if err := fn(s.ctx); err != nil {
				s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
				return
			}
			s.logger.Debug("scheduled job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.sched.Jobs())))
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	return nil
}
