package pipeline

import (
	"sync"
	"time"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// Cache defaults. Every distinct photo grows the map, so entries are bounded
// and age out.
const (
	DefaultCacheEntries = 512
	DefaultCacheTTL     = 24 * time.Hour
)

type cacheEntry struct {
	record     *receipt.Record
	insertedAt time.Time
}

// Cache memoizes successful scan results by image identity. Entries are never
// mutated; they age out by TTL on read and the oldest entry is evicted when
// the bound is hit. The mutex is required because the fast-path lookup runs on
// the caller's goroutine while writes come from the queue worker.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int
	ttl        time.Duration
	timeSource TimeSource
}

// NewCache creates a Cache with the default clock.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return NewCacheWithDeps(maxEntries, ttl, &defaultTimeSource{})
}

// NewCacheWithDeps creates a Cache with a custom time source for testing.
func NewCacheWithDeps(maxEntries int, ttl time.Duration, timeSource TimeSource) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		timeSource: timeSource,
	}
}

// Get returns the cached record for the key, expiring it if the TTL has
// elapsed.
func (c *Cache) Get(key string) (*receipt.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.timeSource.Now().Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.record, true
}

// Put stores a record, evicting the oldest entry when the cache is full.
func (c *Cache) Put(key string, record *receipt.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.insertedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.insertedAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = cacheEntry{record: record, insertedAt: c.timeSource.Now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
