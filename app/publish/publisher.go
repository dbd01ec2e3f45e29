package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/oyemello/newsflash/app/feed"
)

type Status string

const (
	StatusSkipped Status = "skipped"
	StatusUpdated Status = "updated"
)

type Result struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Revision    string `json:"revision,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Archived    bool   `json:"archived"`
}

type State struct {
	Fingerprint string
	Revision    string
}

type PublishError struct {
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s: %v", e.Path, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

type Publisher struct {
	store      Store
	feedPath   string
	archiveDir string
	now        func() time.Time
}

// NewPublisher writes through store, which may be nil when no storage is
// configured; every operation is then a no-op.
func NewPublisher(store Store, feedPath, archiveDir string) *Publisher {
	return &Publisher{
		store:      store,
		feedPath:   feedPath,
		archiveDir: archiveDir,
		now:        time.Now,
	}
}

// WithClock replaces the publish clock.
func (p *Publisher) WithClock(now func() time.Time) *Publisher {
	p.now = now
	return p
}

// Publish writes doc only when its fingerprint differs from the stored one.
// A concurrent writer surfaces as ErrConflict and is never retried here.
func (p *Publisher) Publish(ctx context.Context, doc *feed.Document) (*Result, error) {
	body, err := doc.Marshal()
	if err != nil {
		return nil, err
	}
	fingerprint := feed.Fingerprint(body)

	if p.store == nil {
		return &Result{Status: StatusSkipped, Reason: ErrStorageUnavailable.Error(), Fingerprint: fingerprint}, nil
	}

	state, err := p.State(ctx)
	if err != nil {
		return nil, &PublishError{Path: p.feedPath, Err: err}
	}

	if state.Fingerprint == fingerprint {
		slog.Info("Document unchanged, skipping publish", "fingerprint", fingerprint, "revision", state.Revision)
		return &Result{Status: StatusSkipped, Reason: "unchanged", Revision: state.Revision, Fingerprint: fingerprint}, nil
	}

	message := fmt.Sprintf("chore(feed): update %s", doc.Version)
	revision, err := p.store.Put(ctx, p.feedPath, body, message, state.Revision)
	if err != nil {
		return nil, &PublishError{Path: p.feedPath, Err: err}
	}

	result := &Result{Status: StatusUpdated, Revision: revision, Fingerprint: fingerprint}

	publishedAt := p.now().UTC()
	if publishedAt.Minute() == 0 {
		archivePath := p.ArchivePath(publishedAt)
		if _, err := p.store.Put(ctx, archivePath, body, fmt.Sprintf("chore(feed): archive %s", doc.Version), ""); err != nil {
			slog.Warn("Failed to write archive snapshot", "path", archivePath, "error", err)
		} else {
			result.Archived = true
		}
	}

	slog.Info("Document published", "revision", revision, "fingerprint", fingerprint, "archived", result.Archived, "items", len(doc.Items))

	return result, nil
}

// State returns the fingerprint and revision of the stored document, or an
// empty state when nothing is stored.
func (p *Publisher) State(ctx context.Context) (*State, error) {
	if p.store == nil {
		return &State{}, nil
	}

	object, err := p.store.Get(ctx, p.feedPath)
	if errors.Is(err, ErrNotFound) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current document: %w", err)
	}

	return &State{Fingerprint: feed.Fingerprint(object.Content), Revision: object.Revision}, nil
}

// Latest returns the stored document body verbatim.
func (p *Publisher) Latest(ctx context.Context) ([]byte, error) {
	if p.store == nil {
		return nil, ErrNotFound
	}

	object, err := p.store.Get(ctx, p.feedPath)
	if err != nil {
		return nil, err
	}
	return object.Content, nil
}

// ArchivePath is <archive-dir>/YYYY/MM/DD/HH.json for the given UTC hour.
func (p *Publisher) ArchivePath(t time.Time) string {
	return path.Join(p.archiveDir, t.UTC().Format("2006/01/02/15")+".json")
}
