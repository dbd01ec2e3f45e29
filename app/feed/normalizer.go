package feed

import (
	"cmp"
	"crypto/sha1"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultTopic = "World"

type topicRule struct {
	topic         string
	idKeywords    []string
	titleKeywords []string
}

// Order matters: topics are emitted in table order.
var topicRules = []topicRule{
	{"World", []string{"world"}, []string{"world"}},
	{"Business", []string{"business"}, []string{"business", "market"}},
	{"Technology", []string{"tech", "technology"}, []string{"tech", "ai", "technology"}},
	{"Markets", []string{"market"}, []string{"market"}},
	{"Sports", []string{"sport"}, []string{"sport"}},
	{"Entertainment", []string{"entertain"}, []string{"entertain"}},
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run maps parsed entries to items. Entries without a title or link are
// dropped.
func (n *Normalizer) Run(entries []Entry, source *Source, metadata *Metadata) []Item {
	feedTitle := ""
	if metadata != nil {
		feedTitle = metadata.Title
	}
	sourceName := cmp.Or(strings.TrimSpace(source.Name), feedTitle, source.ID)

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		url := strings.TrimSpace(entry.Link)
		if title == "" || url == "" {
			continue
		}

		item := Item{
			ID:         ItemID(title, url),
			Title:      title,
			URL:        url,
			SourceID:   source.ID,
			SourceName: sourceName,
			Published:  entry.PublishedAt,
			Image:      entry.ImageURL,
			Topics:     AssignTopics(source, title),
			Raw:        cmp.Or(htmlToText(entry.Description), htmlToText(entry.Content)),
		}
		items = append(items, item)
	}

	return items
}

// ItemID is the first 16 hex characters of sha1(lower(title + url)).
func ItemID(title, url string) string {
	sum := sha1.Sum([]byte(strings.ToLower(title + url)))
	return hex.EncodeToString(sum[:])[:16]
}

// AssignTopics uses the source's topic hints when present and otherwise
// matches keywords against the source id and title.
func AssignTopics(source *Source, title string) []string {
	if len(source.Topics) > 0 {
		return slices.Clone(source.Topics)
	}

	sourceID := strings.ToLower(source.ID)
	lowerTitle := strings.ToLower(title)

	var topics []string
	for _, rule := range topicRules {
		if containsAny(sourceID, rule.idKeywords) || containsAny(lowerTitle, rule.titleKeywords) {
			topics = append(topics, rule.topic)
		}
	}

	if len(topics) == 0 {
		topics = []string{DefaultTopic}
	}

	return topics
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
