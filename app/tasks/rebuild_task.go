package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oyemello/newsflash/app/pipeline"
	"github.com/oyemello/newsflash/app/publish"
)

type Rebuilder interface {
	Rebuild(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

type RebuildTask struct {
	Task
	rebuilder Rebuilder
	dryRun    bool
}

func NewRebuildTask(rebuilder Rebuilder, dryRun bool) *RebuildTask {
	return &RebuildTask{
		Task:      NewTask(TaskTypeRebuild),
		rebuilder: rebuilder,
		dryRun:    dryRun,
	}
}

func (t *RebuildTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.rebuilder.Rebuild(ctx, pipeline.Options{DryRun: t.dryRun})
	if err != nil {
		return fmt.Errorf("failed to rebuild feed: %w", err)
	}

	status := "dry_run"
	if result.Publish != nil {
		status = string(result.Publish.Status)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"id", t.GetID(),
		"duration", t.GetDuration(),
		"status", status,
		"items", len(result.Document.Items))

	return nil
}

// ShouldRetry only retries publish conflicts; a concurrent writer may
// have moved the document and a fresh run resolves it.
func (t *RebuildTask) ShouldRetry(err error) bool {
	return errors.Is(err, publish.ErrConflict)
}
