package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DocumentCache keeps the published document body in Redis so reads do
// not hit the store on every request.
type DocumentCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewDocumentCache(ctx context.Context, addr, feedPath string, ttl time.Duration) (*DocumentCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &DocumentCache{
		client: client,
		key:    GenerateKey(feedPath),
		ttl:    ttl,
	}, nil
}

// GenerateKey returns a stable key for a document path.
func GenerateKey(feedPath string) string {
	hash := sha256.Sum256([]byte(feedPath))
	return fmt.Sprintf("newsflash:doc:%x", hash[:8])
}

// Get reports a miss with ok=false and no error.
func (c *DocumentCache) Get(ctx context.Context) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", c.key, err)
	}
	return val, true, nil
}

func (c *DocumentCache) Set(ctx context.Context, body []byte) error {
	if err := c.client.Set(ctx, c.key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", c.key, err)
	}
	return nil
}

func (c *DocumentCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", c.key, err)
	}
	return nil
}

func (c *DocumentCache) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if ttl, err := c.client.TTL(ctx, c.key).Result(); err == nil && ttl > 0 {
		health["document_ttl"] = ttl.String()
	}

	return health
}

func (c *DocumentCache) Close() error {
	return c.client.Close()
}
