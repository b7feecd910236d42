package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int64
	s := New(zerolog.Nop(), Job{
		Name:     "ingestion",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond, "job should run immediately and then on every tick")
}

func TestScheduler_JobsRunIndependently(t *testing.T) {
	var fast, slow atomic.Int64
	release := make(chan struct{})

	s := New(zerolog.Nop(),
		Job{
			Name:     "fast",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				fast.Add(1)
				return nil
			},
		},
		Job{
			Name:     "slow",
			Interval: 10 * time.Millisecond,
			Run: func(ctx context.Context) error {
				slow.Add(1)
				select {
				case <-release:
				case <-ctx.Done():
				}
				return nil
			},
		},
	)

	require.NoError(t, s.Start(context.Background()))
	defer func() {
		close(release)
		s.Stop(context.Background())
	}()

	// The slow job blocks on its first run; the fast one keeps ticking.
	assert.Eventually(t, func() bool {
		return fast.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), slow.Load())
}

func TestScheduler_JobNeverOverlapsItself(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64

	s := New(zerolog.Nop(), Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			current := inFlight.Add(1)
			for {
				max := maxInFlight.Load()
				if current <= max || maxInFlight.CompareAndSwap(max, current) {
					break
				}
			}
			time.Sleep(25 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, int64(1), maxInFlight.Load(), "a slow job must not overlap itself")
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	s := New(zerolog.Nop(), Job{
		Name:     "noop",
		Interval: time.Minute,
		Run:      func(ctx context.Context) error { return nil },
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestScheduler_StartValidatesJobs(t *testing.T) {
	t.Run("missing run function", func(t *testing.T) {
		s := New(zerolog.Nop(), Job{Name: "broken", Interval: time.Minute})
		require.Error(t, s.Start(context.Background()))
	})

	t.Run("missing interval", func(t *testing.T) {
		s := New(zerolog.Nop(), Job{
			Name: "broken",
			Run:  func(ctx context.Context) error { return nil },
		})
		require.Error(t, s.Start(context.Background()))
	})
}

func TestScheduler_StopIdleIsNoop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	var once sync.Once

	s := New(zerolog.Nop(), Job{
		Name:     "slow",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			once.Do(func() { close(started) })
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	<-started

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load(), "stop must wait for the in-flight run")
}

func TestScheduler_StopTimesOut(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	var once sync.Once

	s := New(zerolog.Nop(), Job{
		Name:     "stuck",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Stop(stopCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_RunErrorsDoNotStopTheLoop(t *testing.T) {
	var runs atomic.Int64
	s := New(zerolog.Nop(), Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("transient upstream failure")
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}
