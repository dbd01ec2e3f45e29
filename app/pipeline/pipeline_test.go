package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oyemello/newsflash/app/cfg"
	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/publish"
	"github.com/oyemello/newsflash/app/summarize"
)

type staticRegistry []*feed.Source

func (r staticRegistry) EnabledSources() []*feed.Source {
	return r
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func rssWithItem(title, link string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Feed</title>
    <item>
      <title>%s</title>
      <link>%s</link>
      <description>Lawmakers approved the spending plan.</description>
      <pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`, title, link)
}

func newFeedServer(t *testing.T, feeds map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range feeds {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, body)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testCfg() *cfg.Cfg {
	return &cfg.Cfg{
		MaxEntries:       30,
		FetchConcurrency: 4,
		FuzzyDistance:    6,
	}
}

func newTestPipeline(t *testing.T, c *cfg.Cfg, server *httptest.Server, sources staticRegistry, store publish.Store, cache Invalidator) *Pipeline {
	t.Helper()
	fetcher := feed.NewFetcher(server.Client(), "test-agent", 1, time.Millisecond, time.Second)
	summarizer := summarize.NewSummarizer(nil, 0, 1, 0)
	publisher := publish.NewPublisher(store, "public/data/feed.json", "public/data/archive").
		WithClock(func() time.Time { return time.Date(2025, 3, 3, 10, 17, 0, 0, time.UTC) })
	return New(c, sources, fetcher, summarizer, publisher, cache, NewMetrics())
}

func TestRebuild_BudgetPassedDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		titleA string
		titleB string
	}{
		{"identical titles", "Budget Passed", "Budget Passed"},
		{"trailing period", "Budget Passed", "Budget Passed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFeedServer(t, map[string]string{
				"/a": rssWithItem(tt.titleA, "https://news.example.com/budget"),
				"/b": rssWithItem(tt.titleB, "https://news.example.com/budget"),
			})
			sources := staticRegistry{
				{ID: "wire-a", URL: server.URL + "/a", Settings: feed.SourceSettings{Enabled: true}},
				{ID: "wire-b", URL: server.URL + "/b", Settings: feed.SourceSettings{Enabled: true}},
			}

			c := testCfg()
			c.FuzzyDistance = -1
			p := newTestPipeline(t, c, server, sources, publish.NewFileStore(t.TempDir()), nil)

			result, err := p.Rebuild(context.Background(), Options{})
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}

			if len(result.Document.Items) != 1 {
				t.Fatalf("Expected exactly 1 item, got %d", len(result.Document.Items))
			}
			if result.Document.Items[0].SourceID != "wire-a" {
				t.Errorf("Expected first source to win, got %s", result.Document.Items[0].SourceID)
			}
			if result.Publish.Status != publish.StatusUpdated {
				t.Errorf("Expected updated, got %s", result.Publish.Status)
			}
		})
	}
}

func TestRebuild_DryRunLeavesStateUntouched(t *testing.T) {
	server := newFeedServer(t, map[string]string{
		"/a": rssWithItem("Budget Passed", "https://news.example.com/budget"),
	})
	sources := staticRegistry{{ID: "wire-a", URL: server.URL + "/a", Settings: feed.SourceSettings{Enabled: true}}}

	store := publish.NewFileStore(t.TempDir())
	p := newTestPipeline(t, testCfg(), server, sources, store, nil)

	result, err := p.Rebuild(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	body, _ := result.Document.Marshal()
	if result.Bytes != len(body) {
		t.Errorf("Expected %d bytes, got %d", len(body), result.Bytes)
	}
	if result.Publish != nil {
		t.Error("Expected no publish result for dry run")
	}

	if _, err := store.Get(context.Background(), "public/data/feed.json"); !errors.Is(err, publish.ErrNotFound) {
		t.Errorf("Expected nothing stored after dry run, got %v", err)
	}
}

func TestRebuild_SkipsFailingSource(t *testing.T) {
	server := newFeedServer(t, map[string]string{
		"/good":    rssWithItem("Budget Passed", "https://news.example.com/budget"),
		"/garbage": "not a feed",
	})
	sources := staticRegistry{
		{ID: "missing", URL: server.URL + "/missing", Settings: feed.SourceSettings{Enabled: true}},
		{ID: "garbage", URL: server.URL + "/garbage", Settings: feed.SourceSettings{Enabled: true}},
		{ID: "good", URL: server.URL + "/good", Settings: feed.SourceSettings{Enabled: true}},
	}

	c := testCfg()
	c.RequireSource = true
	p := newTestPipeline(t, c, server, sources, nil, nil)

	result, err := p.Rebuild(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.FailedSources != 2 {
		t.Errorf("Expected 2 failed sources, got %d", result.FailedSources)
	}
	if len(result.Document.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(result.Document.Items))
	}
	if result.Publish.Status != publish.StatusSkipped || result.Publish.Reason != "storage not configured" {
		t.Errorf("Expected skipped publish without storage, got %+v", result.Publish)
	}
}

func TestRebuild_NoSourcesReachable(t *testing.T) {
	server := newFeedServer(t, map[string]string{})
	sources := staticRegistry{{ID: "missing", URL: server.URL + "/missing", Settings: feed.SourceSettings{Enabled: true}}}

	c := testCfg()
	c.RequireSource = true
	p := newTestPipeline(t, c, server, sources, nil, nil)

	if _, err := p.Rebuild(context.Background(), Options{}); !errors.Is(err, ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}

	c.RequireSource = false
	p = newTestPipeline(t, c, server, sources, nil, nil)
	result, err := p.Rebuild(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Expected empty document without require-source, got %v", err)
	}
	if len(result.Document.Items) != 0 {
		t.Errorf("Expected no items, got %d", len(result.Document.Items))
	}
}

func TestRebuild_InvalidatesCacheOnUpdate(t *testing.T) {
	server := newFeedServer(t, map[string]string{
		"/a": rssWithItem("Budget Passed", "https://news.example.com/budget"),
	})
	sources := staticRegistry{{ID: "wire-a", URL: server.URL + "/a", Settings: feed.SourceSettings{Enabled: true}}}

	cache := &countingInvalidator{}
	p := newTestPipeline(t, testCfg(), server, sources, publish.NewFileStore(t.TempDir()), cache)

	first, err := p.Rebuild(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := p.Rebuild(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if first.Publish.Status != publish.StatusUpdated || second.Publish.Status != publish.StatusSkipped {
		t.Errorf("Expected updated then skipped, got %s then %s", first.Publish.Status, second.Publish.Status)
	}
	if cache.calls != 1 {
		t.Errorf("Expected 1 cache invalidation, got %d", cache.calls)
	}
}

func TestRebuild_PerSourceCap(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Many</title>`
	for i := 0; i < 5; i++ {
		body += fmt.Sprintf("<item><title>Distinct headline number %d about topic %c</title><link>https://many.example.com/%d</link></item>", i, 'a'+i*5, i)
	}
	body += `</channel></rss>`

	server := newFeedServer(t, map[string]string{"/many": body})
	sources := staticRegistry{{
		ID:       "many",
		URL:      server.URL + "/many",
		Settings: feed.SourceSettings{Enabled: true, MaxEntries: 2},
	}}

	c := testCfg()
	c.FuzzyDistance = -1
	p := newTestPipeline(t, c, server, sources, nil, nil)

	result, err := p.Rebuild(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Document.Items) != 2 {
		t.Errorf("Expected per-source cap of 2, got %d", len(result.Document.Items))
	}
}

func TestRebuild_ConcurrentSources(t *testing.T) {
	feeds := make(map[string]string)
	var sources staticRegistry
	for i := range 8 {
		path := fmt.Sprintf("/s%d", i)
		feeds[path] = rssWithItem(fmt.Sprintf("Story %d from desk %c", i, 'a'+i), fmt.Sprintf("https://desk%d.example.com/story", i))
		sources = append(sources, &feed.Source{ID: fmt.Sprintf("desk-%d", i), Settings: feed.SourceSettings{Enabled: true}})
	}
	server := newFeedServer(t, feeds)
	for i, source := range sources {
		source.URL = fmt.Sprintf("%s/s%d", server.URL, i)
	}

	c := testCfg()
	c.FetchConcurrency = 8
	p := newTestPipeline(t, c, server, sources, nil, nil)

	for range 3 {
		result, err := p.Rebuild(context.Background(), Options{DryRun: true})
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if result.FailedSources != 0 {
			t.Errorf("Expected no failed sources, got %d", result.FailedSources)
		}
		if len(result.Document.Items) != 8 {
			t.Errorf("Expected 8 items, got %d", len(result.Document.Items))
		}
	}
}
