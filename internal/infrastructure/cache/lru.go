// Package cache holds the in-process store for computed dashboard views.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ledger/internal/domain/dashboard"
)

const (
	DefaultMaxSize = 1000
	DefaultTTL     = 5 * time.Minute
)

var (
	cacheMeter            = otel.Meter("ledger/cache")
	cacheLookups, _       = cacheMeter.Int64Counter("cache.lookup.total", metric.WithDescription("Dashboard cache lookups by result"))
	cacheInvalidations, _ = cacheMeter.Int64Counter("cache.invalidation.total", metric.WithDescription("Per-user dashboard cache invalidations"))
	cacheEvictions, _     = cacheMeter.Int64Counter("cache.eviction.total", metric.WithDescription("Entries evicted by size or TTL"))
	cacheStaleFills, _    = cacheMeter.Int64Counter("cache.stale_fill.total", metric.WithDescription("Computed views discarded because the user was invalidated meanwhile"))
)

// LRU is a size-bounded dashboard.Cache whose entries expire after a TTL.
// Invalidation is per user: every view of that user is dropped at once.
type LRU struct {
	entries *expirable.LRU[dashboard.Key, any]

	// byUser indexes live keys so invalidation does not scan the whole cache.
	mu          sync.Mutex
	byUser      map[int64]map[dashboard.Key]struct{}
	generations map[int64]uint64
}

// NewLRU creates an LRU holding at most maxSize views for ttl each. Zero
// values fall back to the defaults.
func NewLRU(maxSize int, ttl time.Duration) *LRU {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &LRU{
		byUser:      make(map[int64]map[dashboard.Key]struct{}),
		generations: make(map[int64]uint64),
	}
	c.entries = expirable.NewLRU(maxSize, c.onEvict, ttl)
	return c
}

func (c *LRU) onEvict(key dashboard.Key, _ any) {
	c.forget(key)
	cacheEvictions.Add(context.Background(), 1)
}

func (c *LRU) forget(key dashboard.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byUser[key.UserID]
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.byUser, key.UserID)
	}
}

func (c *LRU) Get(ctx context.Context, key dashboard.Key) (any, bool, error) {
	v, ok := c.entries.Get(key)
	result := "miss"
	if ok {
		result = "hit"
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("view", string(key.View)),
		attribute.String("result", result),
	))
	return v, ok, nil
}

func (c *LRU) Generation(ctx context.Context, userID int64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID], nil
}

// Set drops the value when an invalidation of the user happened after gen
// was read. The generation is checked again after the insert: an
// invalidation that ran in between may have missed the new key.
func (c *LRU) Set(ctx context.Context, key dashboard.Key, gen uint64, value any) error {
	c.mu.Lock()
	if c.generations[key.UserID] != gen {
		c.mu.Unlock()
		cacheStaleFills.Add(ctx, 1)
		return nil
	}
	keys, ok := c.byUser[key.UserID]
	if !ok {
		keys = make(map[dashboard.Key]struct{})
		c.byUser[key.UserID] = keys
	}
	keys[key] = struct{}{}
	c.mu.Unlock()

	c.entries.Add(key, value)

	c.mu.Lock()
	stale := c.generations[key.UserID] != gen
	c.mu.Unlock()
	if stale {
		c.entries.Remove(key)
		cacheStaleFills.Add(ctx, 1)
	}
	return nil
}

func (c *LRU) InvalidateUser(ctx context.Context, userID int64) error {
	c.mu.Lock()
	c.generations[userID]++
	keys := make([]dashboard.Key, 0, len(c.byUser[userID]))
	for k := range c.byUser[userID] {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	// Remove fires onEvict, which takes c.mu again.
	for _, k := range keys {
		c.entries.Remove(k)
	}
	cacheInvalidations.Add(ctx, 1)
	return nil
}

// Len reports the number of live entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *LRU) Purge() {
	c.entries.Purge()
}
