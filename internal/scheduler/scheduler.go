// Package scheduler runs the periodic upkeep of open sessions: day rollovers
// and retries of counter writes that failed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/time/rate"
)

// Maintainer is the upkeep surface of the progress service.
type Maintainer interface {
	CheckRollovers(ctx context.Context) (int, error)
	RetryPendingFlushes(ctx context.Context, lim *rate.Limiter) (int, error)
}

// Scheduler manages the background jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Maintainer
	limiter   *rate.Limiter
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a scheduler that checks every interval and retries at most
// retryRate flushes per second.
func New(target Maintainer, interval time.Duration, retryRate float64, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		target:    target,
		limiter:   rate.NewLimiter(rate.Limit(retryRate), 1),
		interval:  interval,
		logger:    logger,
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.checkRollovers); err != nil {
		return fmt.Errorf("schedule rollover check: %w", err)
	}
	if _, err := s.scheduler.Every(s.interval).Do(s.retryFlushes); err != nil {
		return fmt.Errorf("schedule flush retry: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkRollovers() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.target.CheckRollovers(ctx)
	if err != nil {
		s.logger.Error("rollover check failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("daily counters rolled over", "trackers", n)
	}
}

func (s *Scheduler) retryFlushes() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.target.RetryPendingFlushes(ctx, s.limiter)
	if err != nil {
		s.logger.Warn("flush retry incomplete", "flushed", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pending counters flushed", "sessions", n)
	}
}
