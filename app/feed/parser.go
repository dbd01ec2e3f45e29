package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser is safe for concurrent use. gofeed parsers fill their translators
// lazily on first Parse, so each Run gets its own.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run decodes an RSS or Atom payload and keeps at most maxEntries entries
// in feed order. A non-positive maxEntries keeps everything.
func (p *Parser) Run(data []byte, maxEntries int) (*Metadata, []Entry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &ParseError{Err: err}
	}

	metadata := &Metadata{
		Title:    strings.TrimSpace(feed.Title),
		Link:     feed.Link,
		Language: feed.Language,
	}

	feedItems := feed.Items
	if maxEntries > 0 && len(feedItems) > maxEntries {
		feedItems = feedItems[:maxEntries]
	}

	entries := make([]Entry, 0, len(feedItems))
	for _, item := range feedItems {
		if item == nil {
			continue
		}
		entries = append(entries, p.toEntry(item))
	}

	return metadata, entries, nil
}

func (p *Parser) toEntry(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
		Categories:  item.Categories,
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		entry.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		entry.PublishedAt = &updated
	}

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		entry.ImageURL = item.Enclosures[0].URL
	}
	if entry.ImageURL == "" && item.Image != nil {
		entry.ImageURL = item.Image.URL
	}

	return entry
}
