package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/shift-attendance-go/internal/pkg/shift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waiter struct {
	at time.Time
	ch chan time.Time
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: at, ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

// blockUntil waits for n armed timers.
func (c *fakeClock) blockUntil(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.waiters) >= n
	}, time.Second, time.Millisecond)
}

type sinkFunc func(ctx context.Context, run Run) error

func (f sinkFunc) RecordRun(ctx context.Context, run Run) error { return f(ctx, run) }

func TestScheduler_FiresAtLocalTime(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 17, 0, 0, 0, pkt))
	fired := make(chan time.Time, 2)

	s := NewScheduler(pkt, WithClock(clock))
	s.AddDailyJob("seed", shift.TimeOfDay{Hour: 18}, func(_ context.Context, firedAt time.Time) (any, error) {
		fired <- firedAt
		return nil, nil
	})

	next, err := s.NextRun("seed")
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2025, 3, 10, 18, 0, 0, 0, pkt)))

	s.Start()
	defer s.Stop()

	clock.blockUntil(t, 1)
	clock.Advance(time.Hour)

	select {
	case at := <-fired:
		assert.True(t, at.Equal(time.Date(2025, 3, 10, 18, 0, 0, 0, pkt)))
	case <-time.After(time.Second):
		t.Fatal("job did not fire")
	}

	// Re-armed for the following evening.
	clock.blockUntil(t, 1)
	clock.Advance(23 * time.Hour)
	select {
	case <-fired:
		t.Fatal("job fired early")
	default:
	}
	clock.Advance(time.Hour)
	select {
	case at := <-fired:
		assert.True(t, at.Equal(time.Date(2025, 3, 11, 18, 0, 0, 0, pkt)))
	case <-time.After(time.Second):
		t.Fatal("job did not fire on the second day")
	}
}

func TestScheduler_TriggerWhileRunning(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 17, 0, 0, 0, pkt))

	var (
		active  atomic.Int32
		overlap atomic.Bool
		runs    []Run
		runsMu  sync.Mutex
	)
	started := make(chan string, 2)
	release := make(chan struct{})

	sink := sinkFunc(func(_ context.Context, run Run) error {
		runsMu.Lock()
		defer runsMu.Unlock()
		runs = append(runs, run)
		return nil
	})

	s := NewScheduler(pkt, WithClock(clock), WithSinks(sink))
	s.AddDailyJob("seed", shift.TimeOfDay{Hour: 18}, func(_ context.Context, firedAt time.Time) (any, error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		started <- firedAt.Format(time.Kitchen)
		<-release
		return map[string]int{"created": 1}, nil
	})
	s.Start()
	defer s.Stop()
	clock.blockUntil(t, 1)

	manualDone := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), "seed")
		manualDone <- err
	}()
	assert.Equal(t, "5:00PM", <-started)

	_, err := s.Trigger(context.Background(), "seed")
	assert.ErrorIs(t, err, ErrJobRunning)

	// The timer fire queues behind the manual run.
	clock.Advance(time.Hour)
	release <- struct{}{}
	require.NoError(t, <-manualDone)

	assert.Equal(t, "6:00PM", <-started)
	release <- struct{}{}

	require.Eventually(t, func() bool {
		runsMu.Lock()
		defer runsMu.Unlock()
		return len(runs) == 2
	}, time.Second, time.Millisecond)

	assert.False(t, overlap.Load())
	runsMu.Lock()
	defer runsMu.Unlock()
	assert.Equal(t, TriggerManual, runs[0].Trigger)
	assert.Equal(t, TriggerSchedule, runs[1].Trigger)
	assert.Empty(t, runs[0].Error)
}

func TestScheduler_TriggerReportsJobError(t *testing.T) {
	s := NewScheduler(pkt, WithClock(newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, pkt))))
	boom := errors.New("store unreachable")
	s.AddDailyJob("finalize", shift.TimeOfDay{Hour: 6, Minute: 30}, func(context.Context, time.Time) (any, error) {
		return nil, boom
	})

	_, err := s.Trigger(context.Background(), "finalize")
	assert.ErrorIs(t, err, boom)

	_, err = s.Trigger(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)

	assert.Equal(t, []string{"finalize"}, s.Jobs())
}

func TestScheduler_StopWaitsForManualRun(t *testing.T) {
	s := NewScheduler(pkt, WithClock(newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, pkt))))
	started := make(chan struct{})
	release := make(chan struct{})
	s.AddDailyJob("seed", shift.TimeOfDay{Hour: 18}, func(context.Context, time.Time) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	s.Start()

	go func() { _, _ = s.Trigger(context.Background(), "seed") }()
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a manual run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
}
