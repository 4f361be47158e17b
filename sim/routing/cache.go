package routing

import (
	"context"
	"sync"
)

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedRouter memoizes Route results keyed by rounded coordinate pair.
// The cache is owned and bounded: once maxEntries is reached the oldest
// entry is evicted (FIFO). Safe for concurrent use.
type CachedRouter struct {
	inner      Router
	maxEntries int

	mu      sync.Mutex
	entries map[string]Leg
	order   []string
	hits    int64
	misses  int64
}

// NewCachedRouter wraps inner with a bounded route cache.
func NewCachedRouter(inner Router, maxEntries int) *CachedRouter {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &CachedRouter{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[string]Leg),
	}
}

func (c *CachedRouter) Route(ctx context.Context, from, to Point) (Leg, error) {
	key := CacheKey(from, to)

	c.mu.Lock()
	if leg, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return leg, nil
	}
	c.misses++
	c.mu.Unlock()

	// The oracle call happens outside the lock: lookups for both policy
	// simulators may proceed in parallel.
	leg, err := c.inner.Route(ctx, from, to)
	if err != nil {
		return Leg{}, err
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = leg
		c.order = append(c.order, key)
	}
	c.mu.Unlock()

	return leg, nil
}

// Stats returns a copy of current cache counters.
func (c *CachedRouter) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
}
