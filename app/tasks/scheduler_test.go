package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/pipeline"
	"github.com/oyemello/newsflash/app/publish"
)

type fakeRebuilder struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return &pipeline.Result{
		Document: feed.EmptyDocument(),
		Publish:  &publish.Result{Status: publish.StatusSkipped},
	}, nil
}

func (f *fakeRebuilder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitForCalls(t *testing.T, rebuilder *fakeRebuilder, expected int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rebuilder.Calls() >= expected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d calls, got %d", expected, rebuilder.Calls())
}

func conflictErr() error {
	return fmt.Errorf("failed to publish document: %w", &publish.PublishError{Path: "feed.json", Err: publish.ErrConflict})
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewScheduler("not a cron", &fakeRebuilder{}); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	scheduler, err := NewScheduler("0 * * * *", &fakeRebuilder{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	from := time.Date(2025, 3, 1, 9, 17, 0, 0, time.UTC)
	expected := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if next := scheduler.NextRun(from); !next.Equal(expected) {
		t.Errorf("Expected next run %v, got %v", expected, next)
	}
}

func TestScheduler_QueueDepthOne(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	scheduler, _ := NewScheduler("0 0 1 1 *", rebuilder)

	if err := scheduler.EnqueueTask(NewRebuildTask(rebuilder, false)); err != nil {
		t.Fatalf("Expected first enqueue to succeed, got: %v", err)
	}
	if err := scheduler.EnqueueTask(NewRebuildTask(rebuilder, false)); err == nil {
		t.Error("Expected second enqueue to fail while a task is pending")
	}
}

func TestScheduler_RetriesConflicts(t *testing.T) {
	rebuilder := &fakeRebuilder{errs: []error{conflictErr(), conflictErr(), conflictErr(), conflictErr(), conflictErr()}}
	scheduler, _ := NewScheduler("0 0 1 1 *", rebuilder)
	scheduler.retryBase = time.Millisecond

	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(NewRebuildTask(rebuilder, false)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitForCalls(t, rebuilder, 1+DefaultMaxRetries)
	time.Sleep(50 * time.Millisecond)

	if rebuilder.Calls() != 1+DefaultMaxRetries {
		t.Errorf("Expected %d calls, got %d", 1+DefaultMaxRetries, rebuilder.Calls())
	}
}

func TestScheduler_DoesNotRetryOtherErrors(t *testing.T) {
	rebuilder := &fakeRebuilder{errs: []error{errors.New("no source could be fetched")}}
	scheduler, _ := NewScheduler("0 0 1 1 *", rebuilder)
	scheduler.retryBase = time.Millisecond

	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(NewRebuildTask(rebuilder, false)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	waitForCalls(t, rebuilder, 1)
	time.Sleep(50 * time.Millisecond)

	if rebuilder.Calls() != 1 {
		t.Errorf("Expected a single call, got %d", rebuilder.Calls())
	}
}

func TestRebuildTask(t *testing.T) {
	task := NewRebuildTask(&fakeRebuilder{}, true)

	if task.GetType() != TaskTypeRebuild {
		t.Errorf("Expected type rebuild, got %s", task.GetType())
	}
	if len(task.GetID()) != 36 {
		t.Errorf("Expected uuid id, got %s", task.GetID())
	}
	if task.ShouldRetry(errors.New("boom")) {
		t.Error("Expected plain errors not to be retried")
	}
	if !task.ShouldRetry(conflictErr()) {
		t.Error("Expected conflicts to be retried")
	}

	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}
