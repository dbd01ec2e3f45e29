package publish

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("object not found")
	ErrConflict           = errors.New("revision conflict")
	ErrStorageUnavailable = errors.New("storage not configured")
)

type Object struct {
	Content  []byte
	Revision string
}

// Store is a versioned object store. Put with an empty prevRevision only
// succeeds if the path does not exist yet; otherwise prevRevision must
// match the stored revision or ErrConflict is returned.
type Store interface {
	Get(ctx context.Context, path string) (*Object, error)
	Put(ctx context.Context, path string, content []byte, message, prevRevision string) (string, error)
}
