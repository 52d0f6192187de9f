package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCache is a process local Cache. Expired entries are dropped lazily.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	nowFunc func() time.Time // mockable
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*memoryEntry), nowFunc: time.Now}
}

// get returns the live entry at key. Callers hold the lock.
func (c *MemoryCache) get(key string) (*memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

func (c *MemoryCache) newEntry(ttl time.Duration) *memoryEntry {
	e := &memoryEntry{}
	if ttl > 0 {
		e.expiresAt = c.nowFunc().Add(ttl)
	}
	return e
}

func (c *MemoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.get(key)
	if !ok {
		e = c.newEntry(ttl)
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.newEntry(ttl)
	e.count = 1
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.get(key)
	return ok, nil
}
