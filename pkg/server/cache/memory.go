package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache used in tests and single-node setups
// where Redis is not available. Expiry is evaluated lazily on read against
// the injected clock.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a memory cache. A nil clock uses time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

// Get returns the value for key, or nil when absent or expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, nil
	}
	// Copy so callers cannot mutate the stored value.
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores value under key. A zero TTL means no expiry.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = memoryItem{value: stored, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// DeletePattern removes all keys beginning with prefix and returns the count.
func (c *MemoryCache) DeletePattern(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the memory cache.
func (c *MemoryCache) Ping(context.Context) error { return nil }

// Close is a no-op for the memory cache.
func (c *MemoryCache) Close() error { return nil }
