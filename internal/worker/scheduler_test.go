package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSchedulerRunsTaskRepeatedly(t *testing.T) {
	var runs atomic.Int32
	scheduler := NewScheduler(zap.NewNop(), Task{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	scheduler.Wait()
}

func TestSchedulerSkipsTickWhileRunInFlight(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	scheduler := NewScheduler(zap.NewNop(), Task{
		Name:     "slow",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			started.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	assert.Eventually(t, func() bool { return started.Load() == 1 },
		2*time.Second, 5*time.Millisecond)

	// Several intervals pass while the first run blocks; no overlap allowed.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	assert.Eventually(t, func() bool { return started.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	scheduler.Wait()
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	var runs atomic.Int32
	scheduler := NewScheduler(zap.NewNop(), Task{
		Name:     "stoppable",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 1 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	scheduler.Wait()

	// Let a run that was already in flight at cancel time drain.
	time.Sleep(20 * time.Millisecond)
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no ticks may fire after cancellation")
}

func TestSchedulerIgnoresMisconfiguredTasks(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop(),
		Task{Name: "no-interval", Run: func(context.Context) error { return nil }},
		Task{Name: "no-run", Interval: time.Second},
	)

	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on tasks that never started")
	}
}
