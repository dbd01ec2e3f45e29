package feed

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxTitleKeyRunes = 140

// Deduplicator removes exact and near-duplicate items while keeping the
// first occurrence of each. The fuzzy pass is quadratic within a host.
type Deduplicator struct {
	maxDistance int
}

// NewDeduplicator returns a deduplicator whose fuzzy pass treats titles
// within maxDistance edits as duplicates. A negative distance disables
// the fuzzy pass.
func NewDeduplicator(maxDistance int) *Deduplicator {
	return &Deduplicator{maxDistance: maxDistance}
}

func (d *Deduplicator) Run(items []Item) []Item {
	exact := make([]Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	titles := make([]string, 0, len(items))

	for _, item := range items {
		normalized := NormalizeTitle(item.Title)
		key := normalized + "|" + item.URL
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		exact = append(exact, item)
		titles = append(titles, normalized)
	}

	if d.maxDistance < 0 {
		return exact
	}

	byHost := make(map[string][]string)
	result := make([]Item, 0, len(exact))

	for i, item := range exact {
		host := hostOf(item.URL)
		title := titles[i]

		duplicate := false
		for _, prior := range byHost[host] {
			if d.nearDuplicate(prior, title) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		byHost[host] = append(byHost[host], title)
		result = append(result, item)
	}

	return result
}

func (d *Deduplicator) nearDuplicate(a, b string) bool {
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	return withinDistance([]rune(a), []rune(b), d.maxDistance)
}

// NormalizeTitle applies NFKC, lower-cases, strips punctuation, collapses
// whitespace and truncates to 140 runes.
func NormalizeTitle(title string) string {
	s := strings.ToLower(norm.NFKC.String(title))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxTitleKeyRunes {
		runes = runes[:maxTitleKeyRunes]
	}
	return string(runes)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func withinDistance(a, b []rune, limit int) bool {
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > limit {
		return false
	}
	return Levenshtein(a, b) <= limit
}

// Levenshtein is the classic insert/delete/substitute edit distance.
func Levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
