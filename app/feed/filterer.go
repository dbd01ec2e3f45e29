package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops items rejected by the source's include/exclude rules.
func (f *Filterer) Run(items []Item, source *Source) []Item {
	if len(source.Filters) == 0 {
		return items
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if reason, rejected := f.reject(item, source.Filters); rejected {
			slog.Debug("Item filtered", "source", source.ID, "id", item.ID, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

func (f *Filterer) reject(item Item, filters []SourceFilter) (string, bool) {
	for _, filter := range filters {
		value := f.fieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matches(value, exclude) {
				return fmt.Sprintf("excluded by %s filter: contains '%s'", filter.Field, exclude), true
			}
		}

		if len(filter.Includes) == 0 {
			continue
		}

		matched := false
		for _, include := range filter.Includes {
			if f.matches(value, include) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes), true
		}
	}

	return "", false
}

func (f *Filterer) matches(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) fieldValue(item Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "url":
		return item.URL
	case "raw":
		return item.Raw
	case "topics":
		return strings.Join(item.Topics, " ")
	default:
		return ""
	}
}
