package publish

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps objects under a local directory. Revisions are the
// SHA-1 of the content.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Get(ctx context.Context, path string) (*Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(path)
}

func (s *FileStore) Put(ctx context.Context, path string, content []byte, message, prevRevision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(path)
	switch {
	case errors.Is(err, ErrNotFound):
		if prevRevision != "" {
			return "", fmt.Errorf("%s no longer exists: %w", path, ErrConflict)
		}
	case err != nil:
		return "", err
	case current.Revision != prevRevision:
		return "", fmt.Errorf("%s is at revision %s, not %s: %w", path, current.Revision, prevRevision, ErrConflict)
	}

	fullPath := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return revisionOf(content), nil
}

func (s *FileStore) read(path string) (*Object, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &Object{Content: data, Revision: revisionOf(data)}, nil
}

func revisionOf(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}
