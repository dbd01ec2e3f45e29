package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/oyemello/newsflash/app/feed"
)

const (
	fallbackRunes = 400
	maxInputRunes = 5000
	defaultLang   = "en"
)

const systemPrompt = `You are a professional news editor.
Summarize the article in at most 60 words, neutral tone. Include exactly one concise key fact phrase.
Return strict JSON only, with exactly these fields:
{"summary_90w": "...", "key_fact": "...", "topics": [], "entities": [], "region": "", "lang": "en"}`

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMalformed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "failed"
	}
}

type EnrichmentError struct {
	ItemID string
	Err    error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("failed to enrich item %s: %v", e.ItemID, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// Enrichment is the response shape expected from the model.
type Enrichment struct {
	Summary  string   `json:"summary_90w"`
	KeyFact  string   `json:"key_fact"`
	Topics   []string `json:"topics"`
	Entities []string `json:"entities"`
	Region   string   `json:"region"`
	Lang     string   `json:"lang"`
}

type Stats struct {
	Enriched  int
	Malformed int
	Failed    int
}

type Summarizer struct {
	llm         LLMClient
	maxEnriched int
	concurrency int
	limiter     *rate.Limiter
}

// NewSummarizer returns a summarizer in enrichment mode when llm is non-nil
// and in fallback mode otherwise. maxEnriched of 0 means no cap and a rate
// of 0 means no limit.
func NewSummarizer(llm LLMClient, maxEnriched, concurrency int, ratePerSecond float64) *Summarizer {
	s := &Summarizer{
		llm:         llm,
		maxEnriched: maxEnriched,
		concurrency: max(concurrency, 1),
	}
	if ratePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return s
}

func (s *Summarizer) Enabled() bool {
	return s.llm != nil
}

// Run returns the items in the same order with summaries filled in.
func (s *Summarizer) Run(ctx context.Context, items []feed.Item) ([]feed.Item, Stats) {
	out := make([]feed.Item, len(items))
	copy(out, items)

	if s.llm == nil {
		for i := range out {
			applyFallback(&out[i])
		}
		return out, Stats{}
	}

	limit := len(out)
	if s.maxEnriched > 0 && s.maxEnriched < limit {
		limit = s.maxEnriched
	}

	var enriched, malformed, failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i := 0; i < limit; i++ {
		g.Go(func() error {
			switch s.enrich(ctx, &out[i]) {
			case OutcomeOK:
				enriched.Add(1)
			case OutcomeMalformed:
				malformed.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	stats := Stats{
		Enriched:  int(enriched.Load()),
		Malformed: int(malformed.Load()),
		Failed:    int(failed.Load()),
	}
	slog.Info("Summaries completed", "enriched", stats.Enriched, "malformed", stats.Malformed, "failed", stats.Failed, "skipped", len(out)-limit)

	return out, stats
}

func (s *Summarizer) enrich(ctx context.Context, item *feed.Item) Outcome {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			slog.Warn("Enrichment skipped", "id", item.ID, "error", &EnrichmentError{ItemID: item.ID, Err: err})
			applyEnrichmentFallback(item)
			return OutcomeFailed
		}
	}

	content, err := s.llm.Complete(ctx, buildPrompt(item))
	if err != nil {
		slog.Warn("Enrichment request failed", "id", item.ID, "error", &EnrichmentError{ItemID: item.ID, Err: err})
		applyEnrichmentFallback(item)
		return OutcomeFailed
	}

	enrichment, outcome := Decode(content)
	if outcome != OutcomeOK {
		slog.Warn("Enrichment response did not match schema", "id", item.ID, "outcome", outcome.String())
		applyEnrichmentFallback(item)
		return outcome
	}

	summary := enrichment.Summary
	keyFact := enrichment.KeyFact
	item.Summary = &summary
	item.KeyFact = &keyFact
	if len(enrichment.Topics) > 0 {
		item.Topics = enrichment.Topics
	}
	item.Entities = nonNil(enrichment.Entities)
	item.Region = enrichment.Region
	item.Lang = enrichment.Lang
	if item.Lang == "" {
		item.Lang = defaultLang
	}

	return OutcomeOK
}

// Decode parses a model response against the strict schema. Code fences
// are tolerated; unknown fields and a missing summary are not.
func Decode(content string) (*Enrichment, Outcome) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, OutcomeMalformed
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(payload)))
	decoder.DisallowUnknownFields()

	var enrichment Enrichment
	if err := decoder.Decode(&enrichment); err != nil {
		return nil, OutcomeMalformed
	}
	if decoder.More() {
		return nil, OutcomeMalformed
	}
	if strings.TrimSpace(enrichment.Summary) == "" {
		return nil, OutcomeMalformed
	}

	return &enrichment, OutcomeOK
}

func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}

	return ""
}

func buildPrompt(item *feed.Item) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", item.Title)
	fmt.Fprintf(&b, "SOURCE: %s\n", item.SourceName)
	b.WriteString("CONTENT:\n")
	b.WriteString(truncateRunes(item.Raw, maxInputRunes))

	return Prompt{System: systemPrompt, User: b.String()}
}

// applyFallback is the deterministic summary used when enrichment is off.
func applyFallback(item *feed.Item) {
	source := item.Raw
	if source == "" {
		source = item.Title
	}
	summary := truncateRunes(source, fallbackRunes)
	keyFact := ""

	item.Summary = &summary
	item.KeyFact = &keyFact
	item.Entities = []string{}
	item.Region = ""
	item.Lang = defaultLang
}

// applyEnrichmentFallback keeps topics so an item is never left untagged.
func applyEnrichmentFallback(item *feed.Item) {
	summary := item.Title
	keyFact := ""

	item.Summary = &summary
	item.KeyFact = &keyFact
	item.Entities = []string{}
	item.Region = ""
	item.Lang = defaultLang
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
