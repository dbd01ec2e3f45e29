package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/oyemello/newsflash/app/api"
	"github.com/oyemello/newsflash/app/cache"
	"github.com/oyemello/newsflash/app/cfg"
	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/pipeline"
	"github.com/oyemello/newsflash/app/publish"
	"github.com/oyemello/newsflash/app/summarize"
	"github.com/oyemello/newsflash/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if c == nil {
		// help was shown
		return
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(c); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(c *cfg.Cfg) error {
	slog.Info("Starting NewsFlash", "version", c.Version)

	registry := feed.NewRegistry(c.SourcesDir)
	if err := registry.Run(); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "total", registry.Count(), "enabled", len(registry.EnabledSources()))

	httpClient := &http.Client{Timeout: c.FetchTimeout}
	fetcher := feed.NewFetcher(httpClient, c.UserAgent, c.FetchAttempts, c.FetchBackoff, c.FetchTimeout)

	summarizer, err := newSummarizer(c)
	if err != nil {
		return err
	}

	store, err := newStore(c)
	if err != nil {
		return err
	}
	publisher := publish.NewPublisher(store, c.FeedPath, c.ArchiveDir)
	if !c.StorageConfigured() {
		slog.Warn("No storage configured, rebuilds will not publish")
	}

	var (
		invalidator pipeline.Invalidator
		readCache   api.DocumentCache
	)
	if c.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		documentCache, err := cache.NewDocumentCache(ctx, c.RedisAddr, c.FeedPath, c.CacheTTL)
		cancel()
		if err != nil {
			slog.Warn("Document cache disabled", "error", err)
		} else {
			defer documentCache.Close()
			invalidator = documentCache
			readCache = documentCache
		}
	}

	metrics := pipeline.NewMetrics()
	p := pipeline.New(c, registry, fetcher, summarizer, publisher, invalidator, metrics)

	if c.RunOnce {
		return runOnce(c, p)
	}

	if c.Schedule != "" {
		scheduler, err := tasks.NewScheduler(c.Schedule, p)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	handler := api.NewHandler(p, publisher, readCache,
		feed.NewGenerator(c.BaseUrl, c.Port, c.Version), registry, c.Version)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler, metrics.Registry),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // rebuilds run inside the request
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return serveErr
}

func runOnce(c *cfg.Cfg, p *pipeline.Pipeline) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Rebuild(ctx, pipeline.Options{DryRun: c.DryRun})
	if err != nil {
		return err
	}

	if result.DryRun {
		slog.Info("Dry run complete", "bytes", result.Bytes, "items", len(result.Document.Items))
		return nil
	}

	slog.Info("Rebuild complete",
		"status", result.Publish.Status,
		"reason", result.Publish.Reason,
		"revision", result.Publish.Revision,
		"archived", result.Publish.Archived)
	return nil
}

func newSummarizer(c *cfg.Cfg) (*summarize.Summarizer, error) {
	if !c.SummariesEnabled() {
		slog.Info("Enrichment disabled, using fallback summaries")
		return summarize.NewSummarizer(nil, 0, 1, 0), nil
	}

	client, err := summarize.NewOpenAIClient(c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return summarize.NewSummarizer(client, c.MaxEnriched, c.EnrichConcurrency, c.EnrichRate), nil
}

// newStore returns a nil Store when nothing is configured.
func newStore(c *cfg.Cfg) (publish.Store, error) {
	switch {
	case c.GitHubToken != "" && c.GitHubRepo != "":
		client := github.NewClient(nil).WithAuthToken(c.GitHubToken)
		store, err := publish.NewGitHubStore(client, c.GitHubRepo, c.GitHubBranch)
		if err != nil {
			return nil, err
		}
		slog.Info("Publishing to GitHub", "repo", c.GitHubRepo, "branch", c.GitHubBranch)
		return store, nil
	case c.StorageDir != "":
		slog.Info("Publishing to local directory", "dir", c.StorageDir)
		return publish.NewFileStore(c.StorageDir), nil
	default:
		return nil, nil
	}
}
