// internal/domain/pricing/cache.go
package pricing

import (
	"sort"
	"sync"
	"time"
)

type cacheEntry struct {
	result    Result
	writtenAt time.Time
}

// resultCache is a fixed-capacity map of remote results. Entries expire a
// fixed time after they were written; reads never extend their life.
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

func newResultCache(ttl time.Duration, capacity int, now func() time.Time) *resultCache {
	if capacity <= 0 {
		capacity = 512
	}
	if now == nil {
		now = time.Now
	}
	return &resultCache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
	}
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(entry.writtenAt) >= c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result Result) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.purgeExpired(now)
		if len(c.entries) >= c.capacity {
			c.dropOldest()
		}
	}
	c.entries[key] = cacheEntry{result: result, writtenAt: now}
}

func (c *resultCache) purgeExpired(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.writtenAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *resultCache) dropOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.writtenAt.Before(oldest) {
			oldestKey = key
			oldest = entry.writtenAt
		}
	}
	delete(c.entries, oldestKey)
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *resultCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeExpired(now)

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return CacheStats{Size: len(keys), Keys: keys}
}
