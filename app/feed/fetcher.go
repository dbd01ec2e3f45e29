package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const feedAccept = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"

type FetchError struct {
	SourceID string
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch source %s (%s) after %d attempts: %v", e.SourceID, e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	httpClient     *http.Client
	userAgent      string
	attempts       int
	initialBackoff time.Duration
	timeout        time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, attempts int, initialBackoff, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient:     httpClient,
		userAgent:      userAgent,
		attempts:       max(attempts, 1),
		initialBackoff: initialBackoff,
		timeout:        timeout,
	}
}

// Fetch downloads the source's feed, retrying non-2xx responses and
// transport failures with doubling backoff.
func (f *Fetcher) Fetch(ctx context.Context, source *Source) ([]byte, error) {
	attempts := 0
	var data []byte

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		body, err := f.get(ctx, source.URL, feedAccept)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		data = body
		return nil
	}

	notify := func(err error, delay time.Duration) {
		slog.Warn("Fetch attempt failed, retrying", "source", source.ID, "attempt", attempts, "delay", delay, "error", err)
	}

	if err := backoff.RetryNotify(operation, f.newBackOff(ctx), notify); err != nil {
		return nil, &FetchError{SourceID: source.ID, URL: source.URL, Attempts: attempts, Err: err}
	}

	return data, nil
}

// FetchArticle performs a single attempt at an HTML article page.
func (f *Fetcher) FetchArticle(ctx context.Context, url string) ([]byte, error) {
	return f.getHTML(ctx, url)
}

func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.attempts-1)), ctx)
}

func (f *Fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	resp, cancel, err := f.do(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) getHTML(ctx context.Context, url string) ([]byte, error) {
	resp, cancel, err := f.do(ctx, url, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) do(ctx context.Context, url, accept string) (*http.Response, context.CancelFunc, error) {
	timeoutCtx, cancel := ctx, context.CancelFunc(func() {})
	if f.timeout > 0 {
		timeoutCtx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return resp, cancel, nil
}
