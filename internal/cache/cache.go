// Package cache provides an in-memory, bounded response cache with
// TTL expiry and request coalescing.
//
// Entries are kept in an LRU so that a long-running process cannot grow
// without bound, and concurrent lookups for the same key are coalesced
// through singleflight so that at most one upstream fetch is in flight
// per key at any time.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/scholarly-retrieval-service/internal/observability"
)

// DefaultCapacity is the number of entries a cache holds when no
// capacity is configured.
const DefaultCapacity = 1024

// DefaultTTL is how long an entry stays fresh when no TTL is configured.
const DefaultTTL = 15 * time.Minute

// entry wraps a cached value with the time it was stored. Expiry is
// checked on read so there is no background eviction goroutine.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a bounded, TTL-aware cache keyed by string. The zero value
// is not usable; construct with New.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	lru     *lru.Cache[string, entry[V]]
	group   singleflight.Group
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// Config holds cache construction parameters.
type Config struct {
	// Name identifies the cache in logs and metrics, e.g. "search".
	Name string

	// Capacity is the maximum number of entries. Defaults to DefaultCapacity.
	Capacity int

	// TTL is how long an entry stays fresh. Defaults to DefaultTTL.
	TTL time.Duration

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// New creates a cache. It returns an error only if the LRU cannot be
// constructed, which happens for a non-positive capacity after defaults
// are applied (never, in practice).
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	l, err := lru.New[string, entry[V]](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru for cache %q: %w", cfg.Name, err)
	}
	return &Cache[V]{
		name:    cfg.Name,
		ttl:     cfg.TTL,
		lru:     l,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("cache", cfg.Name).Logger(),
		now:     time.Now,
	}, nil
}

// Get returns the cached value for key if present and fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.lru.Get(key)
	if !ok || c.now().Sub(e.storedAt) > c.ttl {
		if ok {
			c.lru.Remove(key)
		}
		c.miss()
		var zero V
		return zero, false
	}
	c.hit()
	return e.value, true
}

// Set stores a value under key, stamping it with the current time.
func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, entry[V]{value: value, storedAt: c.now()})
}

// Len returns the number of entries currently held, including entries
// that have expired but not yet been evicted on read.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops all entries.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// GetOrFetch returns the cached value for key, or invokes fetch to
// produce it. Concurrent callers for the same key share a single fetch:
// the first caller runs fetch, later callers block on its result.
// Errors from fetch are returned to every waiting caller and are never
// cached. If ctx is canceled while waiting, GetOrFetch returns the
// context error; the shared fetch keeps running for the other callers.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have filled the
		// entry between our miss and this closure running.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		if res.Shared {
			c.coalesced()
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[V]) hit() {
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[V]) miss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.WithLabelValues(c.name).Inc()
	}
}

func (c *Cache[V]) coalesced() {
	if c.metrics != nil {
		c.metrics.CacheCoalesced.WithLabelValues(c.name).Inc()
	}
}
