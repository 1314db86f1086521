// Package capabilities implements AgentCapabilities (spec §4.K): small
// composed structs that agents hold by pointer as named fields (HybridAgent
// holds the cache, context, learning and resource mixins; LLMAgent holds a
// ResourceMixin), Go's stand-in for the original's mixin classes.
package capabilities

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value       any
	expiresAt   time.Time
	accessCount int
}

// CacheStats reports a CacheMixin's current utilization.
type CacheStats struct {
	Size          int
	HitRate       float64
	TotalAccesses int
}

// CacheMixin is a per-agent result cache, independent of the shared
// ToolRegistry cache: it is scoped to one agent instance and keyed by
// caller-chosen strings (typically a canonicalized call signature).
type CacheMixin struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    int
	misses  int
}

// NewCacheMixin constructs an empty CacheMixin.
func NewCacheMixin() *CacheMixin {
	return &CacheMixin{entries: map[string]*cacheEntry{}}
}

// Get returns the cached value for key if present and unexpired.
func (c *CacheMixin) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		c.misses++
		if ok {
			delete(c.entries, key)
		}
		return nil, false
	}
	e.accessCount++
	c.hits++
	return e.value, true
}

// Put stores value under key with an optional ttl (zero means no expiry;
// a negative ttl stores an entry that is already expired).
func (c *CacheMixin) Put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if ttl != 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = &cacheEntry{value: value, expiresAt: expiresAt}
}

// Invalidate removes key, reporting whether it was present.
func (c *CacheMixin) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Stats reports size, hit rate and total accesses. TotalAccesses counts
// only cache hits: the field name is historical, carried over from the
// original implementation's accounting.
func (c *CacheMixin) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	accesses := 0
	for _, e := range c.entries {
		accesses += e.accessCount
	}
	return CacheStats{Size: len(c.entries), HitRate: rate, TotalAccesses: accesses}
}
