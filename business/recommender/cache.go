package recommender

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"shopsense/domain"
	"shopsense/pkg/logger"
	"shopsense/pkg/metrics"
)

// CacheStore is an optional second cache tier behind the in-process map,
// typically redis. Store errors are logged and absorbed: the cache layer
// never fails a request.
type CacheStore interface {
	Get(ctx context.Context, key string) (*domain.RecommendationResult, error)
	Set(ctx context.Context, key string, result *domain.RecommendationResult, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type cacheEntry struct {
	result    *domain.RecommendationResult
	expiresAt time.Time
}

// ResultCache memoizes computed recommendation results per cache key with a
// TTL. Concurrent misses on the same key collapse into one computation via
// singleflight; every caller gets the same result.
type ResultCache struct {
	ttl   time.Duration
	store CacheStore // nil when redis is disabled

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group

	now func() time.Time
}

func NewResultCache(ttl time.Duration, store CacheStore) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		store:   store,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// resultCacheKey builds the cache key: identity, then a hash of the request
// context (cart contents and limit) so different carts never collide.
func resultCacheKey(identity domain.Identity, cartIDs []uint64, limit int) string {
	h := fnv.New64a()
	sorted := make([]uint64, len(cartIDs))
	copy(sorted, cartIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		fmt.Fprintf(h, "%d,", id)
	}
	fmt.Fprintf(h, "k%d", limit)
	return fmt.Sprintf("rec:%s:%x", identity.Key(), h.Sum64())
}

func identityPrefix(identity domain.Identity) string {
	return "rec:" + identity.Key() + ":"
}

// GetOrCompute returns the cached result for key, computing and storing it
// on a miss. The second return reports whether the result was shared with a
// concurrent caller or served from cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (*domain.RecommendationResult, error)) (*domain.RecommendationResult, bool, error) {
	if result, ok := c.lookup(ctx, key); ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return result, true, nil
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// a concurrent caller may have filled the entry while this call
		// waited on the flight group
		if result, ok := c.lookup(ctx, key); ok {
			return result, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.put(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*domain.RecommendationResult), shared, nil
}

func (c *ResultCache) lookup(ctx context.Context, key string) (*domain.RecommendationResult, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.result, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if c.store == nil {
		return nil, false
	}
	result, err := c.store.Get(ctx, key)
	if err != nil || result == nil {
		return nil, false
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return result, true
}

func (c *ResultCache) put(ctx context.Context, key string, result *domain.RecommendationResult) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, result, c.ttl); err != nil {
		logger.Warn("failed to write result to cache store", "key", key, "error", err)
	}
}

// InvalidateIdentity drops every cached result for the identity, across both
// tiers. Called after interactions that change what should be recommended.
func (c *ResultCache) InvalidateIdentity(ctx context.Context, identity domain.Identity) {
	prefix := identityPrefix(identity)

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	metrics.CacheRequests.WithLabelValues("invalidated").Inc()

	if c.store == nil {
		return
	}
	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		logger.Warn("failed to invalidate cache store", "prefix", prefix, "error", err)
	}
}

// Flush drops every cached result across both tiers.
func (c *ResultCache) Flush(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	metrics.CacheRequests.WithLabelValues("invalidated").Inc()

	if c.store == nil {
		return
	}
	if err := c.store.DeletePrefix(ctx, "rec:"); err != nil {
		logger.Warn("failed to flush cache store", "error", err)
	}
}

// Len reports the number of live in-process entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, entry := range c.entries {
		if c.now().Before(entry.expiresAt) {
			n++
		}
	}
	return n
}
