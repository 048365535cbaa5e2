package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/skywatch/model"
	"github.com/signalsfoundry/skywatch/timectrl"
)

// DefaultCacheTTL is how long a reading stays fresh before the
// underlying provider is asked again.
const DefaultCacheTTL = 30 * time.Minute

// Cache memoizes provider readings per observer location and day.
// A stale entry is served when the underlying provider fails, so a
// flapping upstream does not flip ratings back to Unknown.
type Cache struct {
	provider Provider
	ttl      time.Duration
	clock    timectrl.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	pct     float64
	fetched time.Time
}

// CacheOption customises Cache construction.
type CacheOption func(*Cache)

// WithClock substitutes the wall clock, for tests.
func WithClock(clock timectrl.Clock) CacheOption {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCache wraps a provider with a TTL cache. A non-positive ttl falls
// back to DefaultCacheTTL.
func NewCache(p Provider, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		provider: p,
		ttl:      ttl,
		clock:    timectrl.SystemClock{},
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name identifies the provider in logs.
func (c *Cache) Name() string { return c.provider.Name() + "+cache" }

// CloudCover serves from cache while the entry is fresh, otherwise asks
// the underlying provider. Concurrent misses for the same key may both
// fetch; the later write wins.
func (c *Cache) CloudCover(ctx context.Context, obs model.Observer, day time.Time) (float64, error) {
	key := cacheKey(obs, day)

	c.mu.Lock()
	entry, found := c.entries[key]
	if found && c.clock.Now().Sub(entry.fetched) < c.ttl {
		c.hits++
		c.mu.Unlock()
		return entry.pct, nil
	}
	c.misses++
	c.mu.Unlock()

	pct, err := c.provider.CloudCover(ctx, obs, day)
	if err != nil {
		if found {
			// Upstream down: hand out the stale reading rather than fail.
			return entry.pct, nil
		}
		return 0, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{pct: pct, fetched: c.clock.Now()}
	c.mu.Unlock()
	return pct, nil
}

// HitRatio reports the fraction of lookups served from a fresh entry.
// Returns 0 before the first lookup.
func (c *Cache) HitRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Clear drops all cached entries. Fired on observer relocation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// cacheKey quantizes the location to ~1 km so jitter in observer
// coordinates does not defeat the cache.
func cacheKey(obs model.Observer, day time.Time) string {
	return fmt.Sprintf("%.2f,%.2f@%s", obs.Latitude, obs.Longitude, day.UTC().Format(forecastDateLayout))
}
