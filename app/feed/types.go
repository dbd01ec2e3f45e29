package feed

import (
	"time"
)

// Source registry types

type Source struct {
	ID       string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Name     string         `yaml:"name"`
	Topics   []string       `yaml:"topics"`
	Settings SourceSettings `yaml:"settings"`
	Filters  []SourceFilter `yaml:"filters"`
}

type SourceSettings struct {
	Enabled        bool `yaml:"enabled"`
	MaxEntries     int  `yaml:"max_entries"`     // 0 falls back to the global cap
	ExtractContent bool `yaml:"extract_content"` // fetch article pages for items without a snippet
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Feed processing types

type Metadata struct {
	Title    string
	Link     string
	Language string
}

// Entry is a parsed feed record before normalization.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time
	Categories  []string
	ImageURL    string // enclosure or item image
}

type Item struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name"`
	Published  *time.Time `json:"published"`
	Image      string     `json:"image,omitempty"`
	Summary    *string    `json:"summary_90w,omitempty"`
	KeyFact    *string    `json:"key_fact,omitempty"`
	Topics     []string   `json:"topics,omitempty"`
	Entities   []string   `json:"entities,omitempty"`
	Region     string     `json:"region,omitempty"`
	Lang       string     `json:"lang,omitempty"`

	Raw string `json:"-"` // summarizer input only
}

type Document struct {
	Version     string     `json:"version"`
	GeneratedAt *time.Time `json:"generatedAt"`
	Items       []Item     `json:"items"`
}
