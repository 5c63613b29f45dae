package progression

import (
	"sync"
	"time"
)

type entryRecord struct {
	addedAt time.Time
}

// entryCache remembers applied entry ids for the retention window so retried
// batches are not credited twice.
type entryCache struct {
	seen map[string]entryRecord
	ttl  time.Duration
	mu   sync.Mutex
}

func newEntryCache(ttl time.Duration) *entryCache {
	return &entryCache{
		seen: make(map[string]entryRecord),
		ttl:  ttl,
	}
}

func (c *entryCache) evictOld(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.ttl)
	for key, record := range c.seen {
		if record.addedAt.Before(cutoff) {
			delete(c.seen, key)
		}
	}
}

func (c *entryCache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, exists := c.seen[key]
	return exists
}

func (c *entryCache) remember(keys []string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.seen[key] = entryRecord{addedAt: now}
	}
}
