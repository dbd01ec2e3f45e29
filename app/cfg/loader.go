package cfg

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	Port       string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl    string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	Schedule   string `long:"schedule" env:"SCHEDULE" description:"Cron expression for scheduled rebuilds (empty disables)"`
	RunOnce    bool   `long:"run-once" env:"RUN_ONCE" description:"Run a single rebuild and exit"`
	DryRun     bool   `long:"dry-run" env:"DRY_RUN" description:"With --run-once, assemble the document without publishing"`

	// Fetching
	UserAgent        string        `long:"user-agent" env:"RSS_USER_AGENT" default:"Mozilla/5.0 (compatible; NewsFlashBot/1.0; +https://github.com/oyemello/newsflash)" description:"User agent string for feed requests"`
	FetchAttempts    int           `long:"fetch-attempts" env:"FETCH_ATTEMPTS" default:"3" description:"Attempts per source before it is skipped"`
	FetchBackoff     time.Duration `long:"fetch-backoff" env:"FETCH_BACKOFF" default:"500ms" description:"Initial backoff between fetch attempts (doubles each attempt)"`
	FetchTimeout     time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for a single fetch attempt"`
	FetchConcurrency int           `long:"fetch-concurrency" env:"FETCH_CONCURRENCY" default:"8" description:"Number of sources fetched in parallel"`
	MaxEntries       int           `long:"max-entries" env:"MAX_ENTRIES" default:"30" description:"Maximum entries taken from each source"`
	RequireSource    bool          `long:"require-source" env:"REQUIRE_SOURCE" description:"Fail the run when no source could be fetched"`

	// Deduplication
	FuzzyDistance int `long:"fuzzy-distance" env:"FUZZY_DISTANCE" default:"6" description:"Maximum title edit distance for near-duplicates (negative disables)"`

	// Summaries
	DisableSummaries  bool    `long:"disable-summaries" env:"DISABLE_SUMMARIES" description:"Use deterministic fallback summaries"`
	OpenAIAPIKey      string  `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key (enrichment is disabled without it)"`
	OpenAIModel       string  `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Model used for enrichment"`
	OpenAIBaseURL     string  `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"Alternative OpenAI-compatible endpoint"`
	MaxEnriched       int     `long:"max-enriched" env:"MAX_ENRICHED" default:"0" description:"Maximum items enriched per run (0 = unlimited)"`
	EnrichConcurrency int     `long:"enrich-concurrency" env:"ENRICH_CONCURRENCY" default:"1" description:"Parallel enrichment requests"`
	EnrichRate        float64 `long:"enrich-rate" env:"ENRICH_RATE" default:"0" description:"Enrichment requests per second (0 = unlimited)"`

	// Storage
	GitHubToken  string `long:"github-token" env:"GITHUB_TOKEN" description:"Token used to commit the document"`
	GitHubRepo   string `long:"github-repo" env:"GITHUB_REPO" description:"Repository holding the document (owner/name)"`
	GitHubBranch string `long:"github-branch" env:"GITHUB_BRANCH" default:"main" description:"Branch holding the document"`
	StorageDir   string `long:"storage-dir" env:"STORAGE_DIR" description:"Local directory used as the document store instead of GitHub"`
	FeedPath     string `long:"feed-path" env:"FEED_PATH" default:"public/data/feed.json" description:"Path of the published document inside the store"`
	ArchiveDir   string `long:"archive-dir" env:"ARCHIVE_DIR" default:"public/data/archive" description:"Directory of hourly snapshots inside the store"`

	// Read cache
	RedisAddr string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the document cache (optional)"`
	CacheTTL  time.Duration `long:"cache-ttl" env:"CACHE_TTL" default:"60s" description:"Lifetime of cached documents"`

	// Application metadata
	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		BaseUrl:           strings.TrimRight(raw.BaseUrl, "/"),
		Schedule:          strings.TrimSpace(raw.Schedule),
		RunOnce:           raw.RunOnce,
		DryRun:            raw.DryRun,
		UserAgent:         raw.UserAgent,
		FetchAttempts:     raw.FetchAttempts,
		FetchBackoff:      raw.FetchBackoff,
		FetchTimeout:      raw.FetchTimeout,
		FetchConcurrency:  raw.FetchConcurrency,
		MaxEntries:        raw.MaxEntries,
		RequireSource:     raw.RequireSource,
		FuzzyDistance:     raw.FuzzyDistance,
		DisableSummaries:  raw.DisableSummaries,
		OpenAIAPIKey:      raw.OpenAIAPIKey,
		OpenAIModel:       raw.OpenAIModel,
		OpenAIBaseURL:     raw.OpenAIBaseURL,
		MaxEnriched:       raw.MaxEnriched,
		EnrichConcurrency: raw.EnrichConcurrency,
		EnrichRate:        raw.EnrichRate,
		GitHubToken:       raw.GitHubToken,
		GitHubRepo:        raw.GitHubRepo,
		GitHubBranch:      raw.GitHubBranch,
		StorageDir:        raw.StorageDir,
		FeedPath:          raw.FeedPath,
		ArchiveDir:        strings.TrimRight(raw.ArchiveDir, "/"),
		RedisAddr:         raw.RedisAddr,
		CacheTTL:          raw.CacheTTL,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	positiveFields := map[string]int{
		"fetch attempts":     c.FetchAttempts,
		"fetch concurrency":  c.FetchConcurrency,
		"max entries":        c.MaxEntries,
		"enrich concurrency": c.EnrichConcurrency,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if c.MaxEnriched < 0 {
		return fmt.Errorf("max enriched must be non-negative")
	}
	if c.EnrichRate < 0 {
		return fmt.Errorf("enrich rate must be non-negative")
	}
	if c.FetchBackoff < 0 || c.FetchTimeout < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("durations must be non-negative")
	}

	if c.GitHubRepo != "" {
		owner, name, ok := strings.Cut(c.GitHubRepo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("github repo must be in owner/name form, got %q", c.GitHubRepo)
		}
	}

	if c.FeedPath == "" {
		return fmt.Errorf("feed path is required")
	}

	return nil
}
