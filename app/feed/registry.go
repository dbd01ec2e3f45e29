package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Registry struct {
	sourcesDir string
	sources    []*Source
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{sourcesDir: sourcesDir}
}

// Run loads every *.yml file in the sources directory. A missing directory
// leaves the built-in defaults in place.
func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		slog.Info("Sources directory not found, using built-in sources", "dir", r.sourcesDir)
		r.sources = DefaultSources()
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}
	sort.Strings(files)

	sources := make([]*Source, 0, len(files))
	for _, file := range files {
		sourceID := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := r.loadSource(file, sourceID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", source.ID, "enabled", source.Settings.Enabled, "topics", source.Topics)
		sources = append(sources, source)
	}

	r.sources = sources
	return nil
}

// Sources returns the registry in load order.
func (r *Registry) Sources() []*Source {
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *Registry) EnabledSources() []*Source {
	enabled := make([]*Source, 0, len(r.sources))
	for _, source := range r.sources {
		if source.Settings.Enabled {
			enabled = append(enabled, source)
		}
	}
	return enabled
}

func (r *Registry) GetSource(sourceID string) (*Source, error) {
	for _, source := range r.sources {
		if source.ID == sourceID {
			return source, nil
		}
	}
	return nil, fmt.Errorf("source with id '%s' not found", sourceID)
}

func (r *Registry) Count() int {
	return len(r.sources)
}

func (r *Registry) loadSource(path, sourceID string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Sources are enabled unless the file says otherwise.
	source := Source{Settings: SourceSettings{Enabled: true}}
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	source.ID = sourceID
	source.URL = strings.TrimSpace(source.URL)

	if err := validateSource(&source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", path, err)
	}

	return &source, nil
}

func validateSource(source *Source) error {
	if source.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	if !strings.HasPrefix(source.URL, "http://") && !strings.HasPrefix(source.URL, "https://") {
		return fmt.Errorf("source URL must be http or https: %s", source.URL)
	}
	if source.Settings.MaxEntries < 0 {
		return fmt.Errorf("max entries must be non-negative")
	}

	validFields := map[string]bool{
		"title":  true,
		"url":    true,
		"raw":    true,
		"topics": true,
	}

	for i, filter := range source.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func DefaultSources() []*Source {
	defaults := []struct {
		id, url string
		topics  []string
	}{
		{"guardian-world", "https://www.theguardian.com/world/rss", []string{"World"}},
		{"verge-tech", "https://www.theverge.com/rss/index.xml", []string{"Technology"}},
		{"bbc-world", "https://feeds.bbci.co.uk/news/world/rss.xml", []string{"World"}},
		{"bbc-business", "https://feeds.bbci.co.uk/news/business/rss.xml", nil},
		{"bbc-tech", "https://feeds.bbci.co.uk/news/technology/rss.xml", []string{"Technology"}},
		{"npr-business", "https://feeds.npr.org/1006/rss.xml", []string{"Business"}},
		{"nyt-markets", "https://rss.nytimes.com/services/xml/rss/nyt/Markets.xml", nil},
		{"techcrunch", "https://techcrunch.com/feed/", []string{"Technology"}},
		{"espn-sports", "https://www.espn.com/espn/rss/news", nil},
		{"guardian-entertainment", "https://www.theguardian.com/uk/culture/rss", nil},
	}

	sources := make([]*Source, 0, len(defaults))
	for _, d := range defaults {
		sources = append(sources, &Source{
			ID:       d.id,
			URL:      d.url,
			Topics:   d.topics,
			Settings: SourceSettings{Enabled: true},
		})
	}
	return sources
}
