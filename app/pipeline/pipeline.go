package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oyemello/newsflash/app/cfg"
	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/publish"
	"github.com/oyemello/newsflash/app/summarize"
)

var ErrNoSources = errors.New("no source could be fetched")

type SourceRegistry interface {
	EnabledSources() []*feed.Source
}

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Options struct {
	DryRun bool
}

type Result struct {
	DryRun        bool
	Bytes         int
	Document      *feed.Document
	Publish       *publish.Result
	Sources       int
	FailedSources int
}

type Pipeline struct {
	registry   SourceRegistry
	fetcher    *feed.Fetcher
	parser     *feed.Parser
	normalizer *feed.Normalizer
	filterer   *feed.Filterer
	extractor  *feed.ContentExtractor
	dedup      *feed.Deduplicator
	summarizer *summarize.Summarizer
	assembler  *feed.Assembler
	publisher  *publish.Publisher
	cache      Invalidator
	metrics    *Metrics

	maxEntries       int
	fetchConcurrency int
	requireSource    bool
}

// New wires a pipeline. cache and metrics may be nil.
func New(c *cfg.Cfg, registry SourceRegistry, fetcher *feed.Fetcher, summarizer *summarize.Summarizer,
	publisher *publish.Publisher, cache Invalidator, metrics *Metrics) *Pipeline {
	p := &Pipeline{
		registry:         registry,
		fetcher:          fetcher,
		parser:           feed.NewParser(),
		normalizer:       feed.NewNormalizer(),
		filterer:         feed.NewFilterer(),
		dedup:            feed.NewDeduplicator(c.FuzzyDistance),
		summarizer:       summarizer,
		assembler:        feed.NewAssembler(),
		publisher:        publisher,
		cache:            cache,
		metrics:          metrics,
		maxEntries:       c.MaxEntries,
		fetchConcurrency: max(c.FetchConcurrency, 1),
		requireSource:    c.RequireSource,
	}

	// Article pages only matter as summarizer input.
	if summarizer.Enabled() {
		p.extractor = feed.NewContentExtractor(fetcher)
	}

	return p
}

func (p *Pipeline) Rebuild(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	result, err := p.rebuild(ctx, opts)

	outcome := "error"
	switch {
	case err == nil && result.DryRun:
		outcome = "dry_run"
	case err == nil:
		outcome = string(result.Publish.Status)
	case errors.Is(err, publish.ErrConflict):
		outcome = "conflict"
	}
	if p.metrics != nil {
		p.metrics.runs.WithLabelValues(outcome).Inc()
		p.metrics.runDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		slog.Error("Rebuild failed", "duration", time.Since(start), "error", err)
		return nil, err
	}

	slog.Info("Rebuild completed",
		"outcome", outcome,
		"duration", time.Since(start),
		"sources", result.Sources,
		"failed_sources", result.FailedSources,
		"items", len(result.Document.Items))

	return result, nil
}

func (p *Pipeline) rebuild(ctx context.Context, opts Options) (*Result, error) {
	sources := p.registry.EnabledSources()

	perSource := make([][]feed.Item, len(sources))
	failed := make([]bool, len(sources))

	g := new(errgroup.Group)
	g.SetLimit(p.fetchConcurrency)

	for i, source := range sources {
		g.Go(func() error {
			items, err := p.collect(ctx, source)
			if err != nil {
				slog.Warn("Source skipped", "source", source.ID, "error", err)
				failed[i] = true
				p.recordSource(source.ID, "failed")
				return nil
			}
			perSource[i] = items
			p.recordSource(source.ID, "ok")
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild cancelled: %w", err)
	}

	var merged []feed.Item
	failedCount := 0
	for i := range sources {
		if failed[i] {
			failedCount++
			continue
		}
		merged = append(merged, perSource[i]...)
	}

	if p.requireSource && failedCount == len(sources) {
		return nil, ErrNoSources
	}

	deduped := p.dedup.Run(merged)
	summarized, stats := p.summarizer.Run(ctx, deduped)
	doc := p.assembler.Run(summarized)

	p.recordItems(len(merged), len(deduped), stats)

	result := &Result{
		DryRun:        opts.DryRun,
		Document:      doc,
		Sources:       len(sources),
		FailedSources: failedCount,
	}

	if opts.DryRun {
		body, err := doc.Marshal()
		if err != nil {
			return nil, err
		}
		result.Bytes = len(body)
		return result, nil
	}

	published, err := p.publisher.Publish(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to publish document: %w", err)
	}
	result.Publish = published

	if published.Status == publish.StatusUpdated && p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			slog.Warn("Failed to invalidate document cache", "error", err)
		}
	}

	return result, nil
}

// collect runs fetch, parse, normalize and filter for one source. Results
// are private to the source until the fan-in.
func (p *Pipeline) collect(ctx context.Context, source *feed.Source) ([]feed.Item, error) {
	data, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	metadata, entries, err := p.parser.Run(data, cmp.Or(source.Settings.MaxEntries, p.maxEntries))
	if err != nil {
		return nil, err
	}

	items := p.normalizer.Run(entries, source, metadata)
	items = p.filterer.Run(items, source)

	if p.extractor != nil && source.Settings.ExtractContent {
		items = p.extractor.Run(ctx, items)
	}

	slog.Debug("Source collected", "source", source.ID, "entries", len(entries), "items", len(items))

	return items, nil
}

func (p *Pipeline) recordSource(sourceID, result string) {
	if p.metrics == nil {
		return
	}
	p.metrics.sourceResults.WithLabelValues(sourceID, result).Inc()
}

func (p *Pipeline) recordItems(collected, deduped int, stats summarize.Stats) {
	if p.metrics == nil {
		return
	}
	p.metrics.items.WithLabelValues("collected").Set(float64(collected))
	p.metrics.items.WithLabelValues("deduplicated").Set(float64(deduped))
	p.metrics.enrichments.WithLabelValues("ok").Add(float64(stats.Enriched))
	p.metrics.enrichments.WithLabelValues("malformed").Add(float64(stats.Malformed))
	p.metrics.enrichments.WithLabelValues("failed").Add(float64(stats.Failed))
}
