package registry

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheEntry is one cached tool result, exclusively owned by the cache that
// created it (spec §3).
type CacheEntry struct {
	Key          string
	Value        any
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int
	TTLSeconds   float64
}

func (e *CacheEntry) expired(now time.Time) bool {
	if e.TTLSeconds == 0 {
		return false
	}
	return now.Sub(e.CreatedAt).Seconds() > e.TTLSeconds
}

// CacheStats summarizes cache utilization. TotalAccesses counts cache hits
// only (sum of each hit entry's AccessCount) — the field name is historical;
// see Open Question #2 in SPEC_FULL.md.
type CacheStats struct {
	Size          int
	HitRate       float64
	TotalAccesses int
	Hits          int
	Misses        int
}

// Cache is the per-agent/per-registry tool result cache. It evicts by LRU
// (ascending LastAccessed) once Size >= MaxSize*CleanupThreshold, down to
// 80% of MaxSize, but only runs that sweep at most once per CleanupInterval
// unless ForceCleanup is called explicitly (Open Question #1).
type Cache struct {
	mu               sync.Mutex
	entries          map[string]*CacheEntry
	maxSize          int
	cleanupThreshold float64
	cleanupInterval  time.Duration
	lastCleanup      time.Time
	hits             int
	misses           int
}

// NewCache constructs a Cache with the given limits.
func NewCache(maxSize int, cleanupThreshold float64, cleanupInterval time.Duration) *Cache {
	return &Cache{
		entries:          map[string]*CacheEntry{},
		maxSize:          maxSize,
		cleanupThreshold: cleanupThreshold,
		cleanupInterval:  cleanupInterval,
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.LastAccessed = time.Now()
	e.AccessCount++
	c.hits++
	return e.Value, true
}

// Put inserts value under key with the given TTL in seconds (0 means no
// expiry; a negative TTL makes the entry already stale), then runs the
// throttled cleanup sweep.
func (c *Cache) Put(key string, value any, ttlSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.entries[key] = &CacheEntry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
		TTLSeconds:   ttlSeconds,
	}
	c.maybeCleanup(now)
}

// maybeCleanup runs the LRU sweep if the cleanup interval has elapsed since
// the last sweep and size has crossed the cleanup threshold. Callers hold c.mu.
func (c *Cache) maybeCleanup(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now
	c.sweep(now)
}

// ForceCleanup runs the LRU/expiry sweep immediately, bypassing the
// interval throttle. This is the explicit manual-trigger escape hatch
// named in spec §9's Open Questions.
func (c *Cache) ForceCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(time.Now())
}

func (c *Cache) sweep(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	if c.maxSize <= 0 || float64(len(c.entries)) < float64(c.maxSize)*c.cleanupThreshold {
		return
	}
	entries := make([]*CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastAccessed.Before(entries[j].LastAccessed) })
	target := int(math.Ceil(float64(c.maxSize) * 0.8))
	if target < 1 {
		target = 1
	}
	for _, e := range entries {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, e.Key)
	}
}

// Invalidate removes entries matching toolName (a "tool_name:" key prefix)
// or, when toolName is empty, entries whose key contains pattern. It returns
// the number of entries removed.
func (c *Cache) Invalidate(toolName, pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		match := false
		switch {
		case toolName != "":
			match = strings.HasPrefix(k, toolName+":")
		case pattern != "":
			match = strings.Contains(k, pattern)
		default:
			match = true
		}
		if match {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats reports current cache utilization.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, e := range c.entries {
		total += e.AccessCount
	}
	rate := 0.0
	if c.hits+c.misses > 0 {
		rate = float64(c.hits) / float64(c.hits+c.misses)
	}
	return CacheStats{
		Size:          len(c.entries),
		HitRate:       rate,
		TotalAccesses: total,
		Hits:          c.hits,
		Misses:        c.misses,
	}
}

// Size reports the current number of entries without affecting hit/miss
// counters.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
