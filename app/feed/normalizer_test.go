package feed

import (
	"crypto/sha1"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestItemID(t *testing.T) {
	sum := sha1.Sum([]byte(strings.ToLower("Big News" + "https://Example.com/A")))
	expected := hex.EncodeToString(sum[:])[:16]

	if got := ItemID("Big News", "https://Example.com/A"); got != expected {
		t.Errorf("Expected id '%s', got '%s'", expected, got)
	}

	if ItemID("BIG NEWS", "https://example.com/a") != ItemID("big news", "https://EXAMPLE.com/a") {
		t.Error("Expected id to be case-insensitive")
	}
	if len(ItemID("a", "b")) != 16 {
		t.Error("Expected 16 character id")
	}
}

func TestNormalizer_Run(t *testing.T) {
	normalizer := NewNormalizer()
	published := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	source := &Source{ID: "guardian-world"}
	metadata := &Metadata{Title: "The Guardian"}
	entries := []Entry{
		{
			Title:       "  Leaders meet  ",
			Link:        " https://example.com/leaders ",
			Description: "<p>Talks <b>resume</b> today.</p>",
			PublishedAt: &published,
			ImageURL:    "https://example.com/img.jpg",
		},
		{Title: "", Link: "https://example.com/untitled"},
		{Title: "No link"},
		{Title: "Content only", Link: "https://example.com/c", Content: "<div>Body   text</div>"},
	}

	items := normalizer.Run(entries, source, metadata)

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Leaders meet" {
		t.Errorf("Expected trimmed title, got '%s'", first.Title)
	}
	if first.URL != "https://example.com/leaders" {
		t.Errorf("Expected trimmed url, got '%s'", first.URL)
	}
	if first.ID != ItemID("Leaders meet", "https://example.com/leaders") {
		t.Errorf("Unexpected id '%s'", first.ID)
	}
	if first.SourceName != "The Guardian" {
		t.Errorf("Expected source name from feed title, got '%s'", first.SourceName)
	}
	if first.Raw != "Talks resume today." {
		t.Errorf("Expected stripped raw text, got '%s'", first.Raw)
	}
	if first.Published == nil || !first.Published.Equal(published) {
		t.Errorf("Expected published %v, got %v", published, first.Published)
	}
	if first.Image != "https://example.com/img.jpg" {
		t.Errorf("Expected image, got '%s'", first.Image)
	}
	if !reflect.DeepEqual(first.Topics, []string{"World"}) {
		t.Errorf("Expected [World], got %v", first.Topics)
	}

	if items[1].Raw != "Body text" {
		t.Errorf("Expected content fallback, got '%s'", items[1].Raw)
	}
}

func TestNormalizer_SourceName(t *testing.T) {
	normalizer := NewNormalizer()
	entries := []Entry{{Title: "T", Link: "https://example.com/t"}}

	named := normalizer.Run(entries, &Source{ID: "src", Name: "Display"}, &Metadata{Title: "Feed"})
	if named[0].SourceName != "Display" {
		t.Errorf("Expected display name, got '%s'", named[0].SourceName)
	}

	bare := normalizer.Run(entries, &Source{ID: "src"}, &Metadata{})
	if bare[0].SourceName != "src" {
		t.Errorf("Expected source id fallback, got '%s'", bare[0].SourceName)
	}
}

func TestAssignTopics(t *testing.T) {
	tests := []struct {
		name     string
		source   *Source
		title    string
		expected []string
	}{
		{"hints win", &Source{ID: "espn-sports", Topics: []string{"Local"}}, "Anything", []string{"Local"}},
		{"source id", &Source{ID: "espn-sports"}, "Final score", []string{"Sports"}},
		{"market source", &Source{ID: "nyt-markets"}, "Stocks slide", []string{"Markets"}},
		{"market title", &Source{ID: "wire"}, "Market rally", []string{"Business", "Markets"}},
		{"ai in title", &Source{ID: "wire"}, "New AI model", []string{"Technology"}},
		{"multiple", &Source{ID: "bbc-business"}, "World tech summit", []string{"World", "Business", "Technology"}},
		{"entertainment", &Source{ID: "guardian-entertainment"}, "Review", []string{"Entertainment"}},
		{"default", &Source{ID: "wire"}, "Quiet news day", []string{"World"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignTopics(tt.source, tt.title)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
