package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

// Scheduler enqueues a rebuild on every cron tick and runs tasks one at a
// time. The queue holds a single pending task; ticks that find it full are
// dropped.
type Scheduler struct {
	expr      *cronexpr.Expression
	rebuilder Rebuilder
	retryBase time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(schedule string, rebuilder Rebuilder) (*Scheduler, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		expr:      expr,
		rebuilder: rebuilder,
		retryBase: time.Second,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}, nil
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			next := s.NextRun(time.Now())
			if next.IsZero() {
				slog.Warn("Schedule has no future runs, stopping trigger")
				return
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if err := s.EnqueueTask(NewRebuildTask(s.rebuilder, false)); err != nil {
					slog.Warn("Scheduled rebuild dropped", "error", err)
				}
			}
		}
	}()

	slog.Info("Scheduler started", "next_run", s.NextRun(time.Now()))
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// NextRun returns the next tick after t, or the zero time if none.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	return s.expr.Next(t)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.ShouldRetry(err) {
		return
	}
	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(s.retryBase*time.Duration(1<<uint(task.GetRetryCount()-1)), maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
