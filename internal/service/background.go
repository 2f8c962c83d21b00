package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// CheckRollovers looks for a local-day change in every open session. On a
// new day each tracker writes the previous day's counts, zeroes its daily
// count and reloads the stored counters. It returns how many trackers
// rolled over.
func (s *ProgressService) CheckRollovers(ctx context.Context) (int, error) {
	now := s.now()
	rolled := 0
	var errs []error

	for _, live := range s.snapshot() {
		live.mu.Lock()
		for _, t := range live.state.Trackers() {
			ok, err := t.CheckRollover(ctx, now, s.repo)
			if ok {
				rolled++
				s.metrics.RecordRollover()
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		live.mu.Unlock()
	}

	if rolled > 0 {
		s.logger.Info("daily rollover applied", "trackers", rolled)
	}
	return rolled, errors.Join(errs...)
}

// RetryPendingFlushes writes whatever is still pending in open sessions,
// pacing repository writes with lim. Finished sessions whose counters are
// all written are dropped. It returns the number of successful writes.
func (s *ProgressService) RetryPendingFlushes(ctx context.Context, lim *rate.Limiter) (int, error) {
	written := 0
	for _, live := range s.snapshot() {
		live.mu.Lock()
		id := live.state.ID
		trackers := live.state.Trackers()
		live.mu.Unlock()

		for _, t := range trackers {
			live.mu.Lock()
			pending := t.HasPending()
			live.mu.Unlock()
			if !pending {
				continue
			}

			if err := lim.Wait(ctx); err != nil {
				return written, err
			}

			live.mu.Lock()
			err := s.flushTracker(ctx, id, t)
			live.mu.Unlock()
			if err == nil {
				written++
			}
		}

		live.mu.Lock()
		done := live.state.Finished() && len(live.state.Pending()) == 0
		live.mu.Unlock()

		if done {
			s.remove(id)
			s.logger.Info("finished session flushed on retry", "session_id", id)
		}
	}
	return written, nil
}

// FlushAll writes every open session's pending counters concurrently. It is
// called on shutdown; sessions stay registered.
func (s *ProgressService) FlushAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, live := range s.snapshot() {
		g.Go(func() error {
			live.mu.Lock()
			defer live.mu.Unlock()
			return s.flushSession(ctx, live)
		})
	}
	return g.Wait()
}
