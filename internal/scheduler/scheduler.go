// Package scheduler runs the periodic ingestion and enrichment jobs on
// independent intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. Run is invoked once immediately on
// Start and then once per Interval. A job never overlaps itself: a tick
// that fires while the previous run is still in flight is delivered
// after that run completes.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a fixed set of jobs, each on its own goroutine. Jobs
// run concurrently with each other but serially with themselves.
type Scheduler struct {
	jobs   []Job
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler for the given jobs. Nothing runs until Start.
func New(logger zerolog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start launches every job loop. It returns an error if the scheduler is
// already running. The context bounds the lifetime of all job runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	for _, job := range s.jobs {
		if job.Run == nil {
			return fmt.Errorf("job %q has no run function", job.Name)
		}
		if job.Interval <= 0 {
			return fmt.Errorf("job %q has no interval", job.Name)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(runCtx, job)
	}

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
	return nil
}

// Stop cancels all job loops and waits for in-flight runs to finish. The
// context bounds the wait; stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	logger := s.logger.With().
		Str("job", job.Name).
		Dur("interval", job.Interval).
		Logger()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, job, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("job loop stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, job, logger)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job, logger zerolog.Logger) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug().Msg("job run cancelled")
			return
		}
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("job run failed")
		return
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("job run complete")
}
