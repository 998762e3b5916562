package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Runner is a job the scheduler can run.
type Runner interface {
	Run(ctx context.Context) (*IngestResult, error)
}

// Scheduler runs a job once an hour at a fixed minute.
type Scheduler struct {
	job        Runner
	clock      clockwork.Clock
	minute     int
	runOnStart bool
	logger     zerolog.Logger
}

// NewScheduler creates a scheduler for job. A nil clock uses real time.
func NewScheduler(job Runner, cfg IngestConfig, clock clockwork.Clock, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		job:        job,
		clock:      clock,
		minute:     cfg.Minute,
		runOnStart: cfg.RunOnStart,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs the job on schedule until ctx is done. Failed runs are logged
// and retried at the next slot.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runOnStart {
		_, _ = s.job.Run(ctx)
	}

	for {
		now := s.clock.Now()
		next := NextRun(now, s.minute)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next ingestion")

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}

		_, _ = s.job.Run(ctx)
	}
}

// NextRun returns the first time after now whose minute is minute and whose
// seconds are zero.
func NextRun(now time.Time, minute int) time.Time {
	next := now.Truncate(time.Hour).Add(time.Duration(minute) * time.Minute)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}
