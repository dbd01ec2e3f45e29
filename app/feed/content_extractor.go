package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

type ArticleFetcher interface {
	FetchArticle(ctx context.Context, url string) ([]byte, error)
}

type ContentExtractor struct {
	fetcher ArticleFetcher
}

func NewContentExtractor(fetcher ArticleFetcher) *ContentExtractor {
	return &ContentExtractor{fetcher: fetcher}
}

// Run fills Raw for items that have none by reading their article page.
// Failures leave the item untouched.
func (e *ContentExtractor) Run(ctx context.Context, items []Item) []Item {
	extracted := 0
	for i := range items {
		if items[i].Raw != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		text, err := e.extractItem(ctx, items[i].URL)
		if err != nil {
			slog.Warn("Failed to extract content for item", "id", items[i].ID, "url", items[i].URL, "error", err)
			continue
		}

		items[i].Raw = text
		extracted++
	}

	if extracted > 0 {
		slog.Debug("Content extracted", "count", extracted)
	}

	return items
}

func (e *ContentExtractor) extractItem(ctx context.Context, pageURL string) (string, error) {
	data, err := e.fetcher.FetchArticle(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article content: %w", err)
	}

	return e.Extract(data, pageURL)
}

// Extract reduces an HTML page to its readable text.
func (e *ContentExtractor) Extract(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	return text, nil
}
