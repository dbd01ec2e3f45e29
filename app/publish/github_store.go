package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

// GitHubStore keeps objects as files in a repository branch. Revisions are
// blob SHAs, which the contents API checks on update.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

func NewGitHubStore(client *github.Client, repository, branch string) (*GitHubStore, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("repository must be in owner/name form, got %q", repository)
	}

	return &GitHubStore{client: client, owner: owner, repo: repo, branch: branch}, nil
}

func (s *GitHubStore) Get(ctx context.Context, path string) (*Object, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	// Files over 1 MB come back without inline content.
	if file.GetEncoding() == "none" {
		blob, _, err := s.client.Git.GetBlobRaw(ctx, s.owner, s.repo, file.GetSHA())
		if err != nil {
			return nil, fmt.Errorf("failed to get blob for %s: %w", path, err)
		}
		return &Object{Content: blob, Revision: file.GetSHA()}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &Object{Content: []byte(content), Revision: file.GetSHA()}, nil
}

func (s *GitHubStore) Put(ctx context.Context, path string, content []byte, message, prevRevision string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String(s.branch),
	}

	var (
		result *github.RepositoryContentResponse
		resp   *github.Response
		err    error
	)
	if prevRevision == "" {
		result, resp, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, path, opts)
	} else {
		opts.SHA = github.String(prevRevision)
		result, resp, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, path, opts)
	}

	if err != nil {
		if resp != nil && isConflictStatus(resp.StatusCode) {
			return "", fmt.Errorf("failed to write %s: %w", path, errors.Join(ErrConflict, err))
		}
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	if result == nil || result.Content == nil {
		return "", nil
	}
	return result.Content.GetSHA(), nil
}

// The contents API answers a stale or missing sha with 409 and a create
// over an existing file with 422.
func isConflictStatus(code int) bool {
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}
