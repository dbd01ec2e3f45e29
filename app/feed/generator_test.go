package feed

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator("https://news.example.com", "8080", "1.2.3")

	generatedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	published := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := "Leaders agreed on a framework & timeline."

	doc := &Document{
		Version:     "1740830400000",
		GeneratedAt: &generatedAt,
		Items: []Item{
			{
				ID:         "0123456789abcdef",
				Title:      "Summit ends <with> deal",
				URL:        "https://example.com/summit",
				SourceName: "Example Wire",
				Published:  &published,
				Summary:    &summary,
				Topics:     []string{"World", "Business"},
				Image:      "https://example.com/summit.jpg",
			},
			{
				ID:    "fedcba9876543210",
				Title: "Undated story",
				URL:   "https://example.com/undated",
			},
		},
	}

	rss, err := generator.Run(doc)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expectedElements := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<atom:link href="https://news.example.com/feed.rss" rel="self" type="application/rss+xml" />`,
		"<generator>NewsFlash/1.2.3</generator>",
		"<lastBuildDate>" + generatedAt.Format(time.RFC1123Z) + "</lastBuildDate>",
		`<guid isPermaLink="false">0123456789abcdef</guid>`,
		"<title>Summit ends &lt;with&gt; deal</title>",
		"<description>Leaders agreed on a framework &amp; timeline.</description>",
		"<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>",
		"<category>Business</category>",
		"<source>Example Wire</source>",
		`<enclosure url="https://example.com/summit.jpg"`,
		"<description>Undated story</description>",
	}

	for _, expected := range expectedElements {
		if !strings.Contains(rss, expected) {
			t.Errorf("Expected RSS to contain '%s'", expected)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}
	if strings.Count(rss, "<pubDate>") != 1 {
		t.Errorf("Expected only the dated item to carry pubDate, got %d", strings.Count(rss, "<pubDate>"))
	}
}

func TestGenerateRSS_LocalSelfLink(t *testing.T) {
	generator := NewGenerator("", "9090", "dev")

	rss, err := generator.Run(EmptyDocument())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, "http://localhost:9090/feed.rss") {
		t.Error("Expected localhost self link when no base URL is configured")
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items for empty document")
	}
}
