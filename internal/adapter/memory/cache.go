package memory

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// DefaultCacheEntries bounds a Cache built by NewCache. A benchmark pass over
// a few hundred cases across three agents stays well under it.
const DefaultCacheEntries = 4096

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

// Cache holds generator completions in process. When full, expired entries
// are dropped first, then the oldest.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxEntries int
	now        func() time.Time
}

func NewCache() *Cache {
	return NewBoundedCache(DefaultCacheEntries)
}

func NewBoundedCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	now := c.now()
	if !now.After(entry.expiresAt) {
		return entry.value, nil
	}

	// A Set may have refreshed the key since the read lock was released.
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok = c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
	return nil
}

func (c *Cache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len counts stored entries, expired ones included until they are touched.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey, oldest = k, e.storedAt
		}
	}
	delete(c.entries, oldestKey)
}
