package feed

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

type Assembler struct {
	now func() time.Time

	mu          sync.Mutex
	lastVersion int64
}

func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// NewAssemblerWithClock is used by tests that need a fixed assembly time.
func NewAssemblerWithClock(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Run orders the items and stamps the document. Versions are strictly
// increasing for the lifetime of the assembler even if the clock stalls.
func (a *Assembler) Run(items []Item) *Document {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	SortItems(sorted)

	generatedAt := a.now().UTC()

	a.mu.Lock()
	version := generatedAt.UnixMilli()
	if version <= a.lastVersion {
		version = a.lastVersion + 1
	}
	a.lastVersion = version
	a.mu.Unlock()

	return &Document{
		Version:     strconv.FormatInt(version, 10),
		GeneratedAt: &generatedAt,
		Items:       sorted,
	}
}

// SortItems orders by publish time descending with unknown times last,
// breaking ties by title.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		switch {
		case a == nil && b == nil:
			return items[i].Title < items[j].Title
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return items[i].Title < items[j].Title
		}
	})
}
