package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/pipeline"
	"github.com/oyemello/newsflash/app/publish"
)

const feedCacheControl = "public, max-age=0, s-maxage=60, stale-while-revalidate=120"

// NewHandler builds the HTTP handlers. cache may be nil.
func NewHandler(rebuilder Rebuilder, reader DocumentReader, cache DocumentCache,
	generator GeneratorInterface, registry SourceRegistry, version string) *Handler {
	return &Handler{
		rebuilder: rebuilder,
		reader:    reader,
		cache:     cache,
		generator: generator,
		registry:  registry,
		version:   version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	body := h.readDocument(c.Request.Context())

	// Weak: bodies differing only in version or generatedAt share a tag.
	c.Header("ETag", `W/"`+feed.Fingerprint(body)+`"`)
	c.Header("Cache-Control", feedCacheControl)
	c.Data(http.StatusOK, "application/json", body)
}

func (h *Handler) GetFeedHead(c *gin.Context) {
	body := h.readDocument(c.Request.Context())

	c.Header("Cache-Control", feedCacheControl)
	c.String(http.StatusOK, feed.Fingerprint(body))
}

func (h *Handler) GetRSS(c *gin.Context) {
	body := h.readDocument(c.Request.Context())

	doc, err := feed.UnmarshalDocument(body)
	if err != nil {
		slog.Error("Stored document is not valid JSON", "error", err)
		doc = feed.EmptyDocument()
	}

	rss, err := h.generator.Run(doc)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(doc.Items)))
	c.Header("X-Feed-Version", doc.Version)

	c.String(http.StatusOK, rss)
}

func (h *Handler) Rebuild(c *gin.Context) {
	dry := c.Query("dry") == "1"

	result, err := h.rebuilder.Rebuild(c.Request.Context(), pipeline.Options{DryRun: dry})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, publish.ErrConflict) {
			status = http.StatusConflict
		}
		slog.Error("Rebuild failed", "dry", dry, "status", status, "error", err)
		c.JSON(status, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if result.DryRun {
		c.JSON(http.StatusOK, gin.H{"ok": true, "dry": true, "bytes": result.Bytes})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"status":      result.Publish.Status,
		"reason":      result.Publish.Reason,
		"revision":    result.Publish.Revision,
		"fingerprint": result.Publish.Fingerprint,
		"archived":    result.Publish.Archived,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sources":   h.registry.Count(),
	}

	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListSources(c *gin.Context) {
	sources := h.registry.Sources()

	list := make([]map[string]any, 0, len(sources))
	for _, source := range sources {
		list = append(list, sourceInfo(source))
	}

	c.JSON(http.StatusOK, map[string]any{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) GetSourceDetails(c *gin.Context) {
	id := c.Param("id")

	source, err := h.registry.GetSource(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	details := sourceInfo(source)
	details["filters"] = source.Filters
	details["extract_content"] = source.Settings.ExtractContent

	c.JSON(http.StatusOK, details)
}

func sourceInfo(source *feed.Source) map[string]any {
	return map[string]any{
		"id":          source.ID,
		"name":        source.Name,
		"url":         source.URL,
		"topics":      source.Topics,
		"enabled":     source.Settings.Enabled,
		"max_entries": source.Settings.MaxEntries,
	}
}

// readDocument never fails: any read error yields the empty document.
func (h *Handler) readDocument(ctx context.Context) []byte {
	if h.cache != nil {
		body, ok, err := h.cache.Get(ctx)
		if err != nil {
			slog.Warn("Document cache read failed", "error", err)
		} else if ok {
			return body
		}
	}

	body, err := h.reader.Latest(ctx)
	if err != nil || len(body) == 0 {
		if err != nil && !errors.Is(err, publish.ErrNotFound) {
			slog.Error("Failed to read published document", "error", err)
		}
		return emptyDocument()
	}

	if h.cache != nil {
		h.fillCache(ctx, body)
	}

	return body
}

// fillCache stores body only while it is still the published revision, so a
// read racing a publish does not put the old document back after the
// pipeline invalidated it.
func (h *Handler) fillCache(ctx context.Context, body []byte) {
	state, err := h.reader.State(ctx)
	if err != nil {
		slog.Warn("Failed to read document state, not caching", "error", err)
		return
	}
	if state.Fingerprint != feed.Fingerprint(body) {
		slog.Debug("Document changed while reading, not caching")
		return
	}

	if err := h.cache.Set(ctx, body); err != nil {
		slog.Warn("Document cache write failed", "error", err)
	}
}

func emptyDocument() []byte {
	body, err := feed.EmptyDocument().Marshal()
	if err != nil {
		return []byte(`{"version":"0","generatedAt":null,"items":[]}`)
	}
	return body
}
