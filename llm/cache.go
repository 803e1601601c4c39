package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates cache miss.
var ErrCacheMiss = errors.New("cache miss")

// CacheEntry represents a cached completion.
type CacheEntry struct {
	Response    *Response `json:"response"`
	TokensSaved int       `json:"tokens_saved"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	HitCount    int       `json:"hit_count"`
}

// CacheConfig configures the completion cache.
type CacheConfig struct {
	LocalTTL    time.Duration `json:"local_ttl"`
	RedisTTL    time.Duration `json:"redis_ttl"`
	EnableLocal bool          `json:"enable_local"`
	EnableRedis bool          `json:"enable_redis"`
}

// DefaultCacheConfig returns sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		LocalTTL:    5 * time.Minute,
		RedisTTL:    1 * time.Hour,
		EnableLocal: true,
		EnableRedis: false,
	}
}

// CacheStats reports hit and miss counts.
type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	TokensSaved int64 `json:"tokens_saved"`
	LocalItems  int   `json:"local_items"`
}

// CachedProvider wraps a Provider with a local + optional Redis cache tier.
// The local tier absorbs repeat prompts within a session; Redis shares
// entries across processes when configured.
type CachedProvider struct {
	inner  Provider
	local  *gocache.Cache
	redis  *redis.Client
	config *CacheConfig
	logger *zap.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	tokensSaved atomic.Int64
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with caching. rdb may be nil when the Redis
// tier is disabled.
func NewCachedProvider(inner Provider, rdb *redis.Client, config *CacheConfig, logger *zap.Logger) *CachedProvider {
	if config == nil {
		config = DefaultCacheConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var local *gocache.Cache
	if config.EnableLocal {
		local = gocache.New(config.LocalTTL, 2*config.LocalTTL)
	}

	return &CachedProvider{
		inner:  inner,
		local:  local,
		redis:  rdb,
		config: config,
		logger: logger.With(zap.String("component", "llm_cache")),
	}
}

// Name implements Provider.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// HealthCheck implements Provider.
func (c *CachedProvider) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// Completion implements Provider. Hits return a copy of the cached response
// with Cached set; misses fall through to the inner provider and populate
// both tiers.
func (c *CachedProvider) Completion(ctx context.Context, req *Request) (*Response, error) {
	if !c.cacheable(req) {
		return c.inner.Completion(ctx, req)
	}

	key := cacheKey(req)
	if entry, err := c.get(ctx, key); err == nil {
		c.hits.Add(1)
		c.tokensSaved.Add(int64(entry.Response.Usage.TotalTokens))
		resp := *entry.Response
		resp.Cached = true
		return &resp, nil
	}
	c.misses.Add(1)

	resp, err := c.inner.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := &CacheEntry{
		Response:    resp,
		TokensSaved: resp.Usage.TotalTokens,
	}
	if err := c.set(ctx, key, entry); err != nil {
		c.logger.Debug("cache store failed", zap.Error(err))
	}
	return resp, nil
}

// Stats returns cumulative cache statistics.
func (c *CachedProvider) Stats() CacheStats {
	stats := CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		TokensSaved: c.tokensSaved.Load(),
	}
	if c.local != nil {
		stats.LocalItems = c.local.ItemCount()
	}
	return stats
}

// Flush drops the local tier. Redis entries expire on their own TTL.
func (c *CachedProvider) Flush() {
	if c.local != nil {
		c.local.Flush()
	}
}

func (c *CachedProvider) cacheable(req *Request) bool {
	return req != nil && req.Prompt != ""
}

func (c *CachedProvider) get(ctx context.Context, key string) (*CacheEntry, error) {
	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			entry := v.(*CacheEntry)
			entry.HitCount++
			return entry, nil
		}
	}

	if c.config.EnableRedis && c.redis != nil {
		data, err := c.redis.Get(ctx, redisCacheKey(key)).Bytes()
		if err == nil {
			var entry CacheEntry
			if err := json.Unmarshal(data, &entry); err == nil {
				if c.local != nil {
					c.local.SetDefault(key, &entry)
				}
				return &entry, nil
			}
		}
	}

	return nil, ErrCacheMiss
}

func (c *CachedProvider) set(ctx context.Context, key string, entry *CacheEntry) error {
	entry.CreatedAt = time.Now()
	entry.ExpiresAt = entry.CreatedAt.Add(c.config.RedisTTL)

	if c.local != nil {
		c.local.SetDefault(key, entry)
	}

	if c.config.EnableRedis && c.redis != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return c.redis.Set(ctx, redisCacheKey(key), data, c.config.RedisTTL).Err()
	}

	return nil
}

// cacheKey derives a stable key from the request fields that shape output.
func cacheKey(req *Request) string {
	data, _ := json.Marshal(struct {
		Model       string  `json:"model"`
		System      string  `json:"system"`
		Prompt      string  `json:"prompt"`
		Temperature float64 `json:"temperature"`
	}{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func redisCacheKey(key string) string {
	return fmt.Sprintf("smalltalk:llm:%s", key)
}
