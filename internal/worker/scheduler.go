package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one recurring unit of work. Run must respect ctx cancellation.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives independent repeating tasks. Each task is guarded by a
// re-entrancy flag so a slow tick cannot overlap its own next firing; the
// tasks are otherwise independent and run concurrently with each other.
type Scheduler struct {
	logger *zap.Logger
	tasks  []Task
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for the given tasks.
func NewScheduler(logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{logger: logger, tasks: tasks}
}

// Start launches one goroutine per task. It returns immediately; tasks stop
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		if task.Interval <= 0 || task.Run == nil {
			s.logger.Warn("skipping misconfigured task", zap.String("task", task.Name))
			continue
		}
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}
}

// Wait blocks until every task loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	var running atomic.Bool
	s.logger.Info("task scheduled",
		zap.String("task", task.Name),
		zap.Duration("interval", task.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("task stopped", zap.String("task", task.Name))
			return
		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				s.logger.Warn("previous run still in flight, skipping tick",
					zap.String("task", task.Name))
				continue
			}
			go func() {
				defer running.Store(false)
				if err := task.Run(ctx); err != nil {
					s.logger.Warn("task run failed",
						zap.String("task", task.Name),
						zap.Error(err))
				}
			}()
		}
	}
}
