package cfg

import "time"

type Cfg struct {
	// Application configuration
	SourcesDir string
	Port       string
	BaseUrl    string
	Schedule   string
	RunOnce    bool
	DryRun     bool

	// Fetching
	UserAgent        string
	FetchAttempts    int
	FetchBackoff     time.Duration
	FetchTimeout     time.Duration
	FetchConcurrency int
	MaxEntries       int
	RequireSource    bool

	// Deduplication
	FuzzyDistance int

	// Summaries
	DisableSummaries  bool
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	MaxEnriched       int
	EnrichConcurrency int
	EnrichRate        float64

	// Storage
	GitHubToken  string
	GitHubRepo   string
	GitHubBranch string
	StorageDir   string
	FeedPath     string
	ArchiveDir   string

	// Read cache
	RedisAddr string
	CacheTTL  time.Duration

	// Application metadata
	Debug   bool
	Version string
}

// SummariesEnabled reports whether items are sent to the LLM for enrichment.
func (c *Cfg) SummariesEnabled() bool {
	return !c.DisableSummaries && c.OpenAIAPIKey != ""
}

// StorageConfigured reports whether any publish target is configured.
func (c *Cfg) StorageConfigured() bool {
	return (c.GitHubToken != "" && c.GitHubRepo != "") || c.StorageDir != ""
}
