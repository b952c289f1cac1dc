package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long cached results live when no TTL is configured
const DefaultCacheTTL = 5 * time.Minute

// generationKey holds the cache generation. It sits outside the search:*
// namespace so invalidation never deletes it.
const generationKey = "search_cache_generation"

// CacheStore is the key/value backend of ResultCache. *cache.RedisClient
// implements it.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// ResultCache caches search and autocomplete results. Entries are keyed on
// a generation counter that every index write bumps, so a write makes all
// earlier entries unreachable at once. Every method is a no-op on a nil
// *ResultCache, and backend errors degrade to cache misses.
type ResultCache struct {
	store CacheStore
	ttl   time.Duration

	// mu serializes generation bumps with updates to bypass
	mu sync.Mutex
	// bypass is set while the latest bump failed; lookups skip the cache
	// until a later bump succeeds
	bypass atomic.Bool
}

// NewResultCache creates a result cache over store
func NewResultCache(store CacheStore, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{store: store, ttl: ttl}
}

// cacheKey generates a cache key for the query parameters
func cacheKey(gen int64, prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("search:g%d:%s:%x", gen, prefix, hash)
}

func autocompleteKey(gen int64, prefix string, size int) string {
	return cacheKey(gen, "autocomplete", map[string]interface{}{"prefix": prefix, "size": size})
}

func (c *ResultCache) enabled() bool {
	return c != nil && c.store != nil
}

// Bypassed reports whether lookups currently skip the cache
func (c *ResultCache) Bypassed() bool {
	return c.enabled() && c.bypass.Load()
}

// Generation is the cache as of one moment. A lookup pins it before
// querying the index and stores its result under the same generation, so a
// result computed before a concurrent write can never be served after it.
// All methods are no-ops on a nil *Generation.
type Generation struct {
	cache *ResultCache
	n     int64
}

// Current pins the current generation. It returns nil when the cache is
// disabled, bypassed or unreachable.
func (c *ResultCache) Current(ctx context.Context) *Generation {
	if !c.enabled() || c.bypass.Load() {
		return nil
	}
	n, err := c.store.IncrBy(ctx, generationKey, 0)
	if err != nil {
		logger.Log.Debug("Search cache generation unavailable", zap.Error(err))
		return nil
	}
	return &Generation{cache: c, n: n}
}

// GetSearch looks up a cached search page for queryType
func (g *Generation) GetSearch(ctx context.Context, queryType string, p SearchParams) (*SearchResult, bool) {
	if g == nil {
		return nil, false
	}
	var result SearchResult
	if !g.cache.get(ctx, cacheKey(g.n, "recipes:"+queryType, p), &result) {
		return nil, false
	}
	return &result, true
}

// SetSearch stores a search page for queryType
func (g *Generation) SetSearch(ctx context.Context, queryType string, p SearchParams, result *SearchResult) {
	if g == nil || result == nil {
		return
	}
	g.cache.set(ctx, cacheKey(g.n, "recipes:"+queryType, p), result)
}

// GetAutocomplete looks up cached suggestions
func (g *Generation) GetAutocomplete(ctx context.Context, prefix string, size int) ([]string, bool) {
	if g == nil {
		return nil, false
	}
	var keys []string
	if !g.cache.get(ctx, autocompleteKey(g.n, prefix, size), &keys) {
		return nil, false
	}
	return keys, true
}

// SetAutocomplete stores suggestions
func (g *Generation) SetAutocomplete(ctx context.Context, prefix string, size int, keys []string) {
	if g == nil {
		return
	}
	g.cache.set(ctx, autocompleteKey(g.n, prefix, size), keys)
}

// InvalidateSearchCache bumps the generation, which retires every cached
// search and autocomplete result, then deletes the retired entries. When
// the bump fails the cache is bypassed until a later bump succeeds and the
// error is returned.
func (c *ResultCache) InvalidateSearchCache(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	ctx, span := telemetry.TraceCacheCall(ctx, "invalidate", generationKey)
	defer span.End()

	c.mu.Lock()
	gen, err := c.store.IncrBy(ctx, generationKey, 1)
	c.bypass.Store(err != nil)
	c.mu.Unlock()

	if err != nil {
		telemetry.RecordServiceError(span, err)
		return fmt.Errorf("failed to bump search cache generation: %w", err)
	}

	// Retired entries are unreachable; deleting them only frees memory
	deleted, err := c.store.DeleteByPattern(ctx, "search:*")
	if err != nil {
		logger.Log.Debug("Failed to delete retired search cache entries",
			zap.Int64("generation", gen),
			zap.Error(err),
		)
		return nil
	}
	telemetry.RecordItemCount(span, deleted)
	return nil
}

func (c *ResultCache) get(ctx context.Context, key string, dst interface{}) bool {
	ctx, span := telemetry.TraceCacheCall(ctx, "get", key)
	defer span.End()

	cached, err := c.store.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(cached), dst); err != nil {
		logger.Log.Debug("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	telemetry.RecordCacheHit(span, true)
	return true
}

func (c *ResultCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	ctx, span := telemetry.TraceCacheCall(ctx, "set", key)
	defer span.End()

	if err := c.store.SetEx(ctx, key, data, c.ttl); err != nil {
		logger.Log.Debug("Failed to cache search result", zap.String("key", key), zap.Error(err))
	}
}
