// Package cache provides an in-memory TTL cache used for rendered pages.
package cache

import (
	"sync"
	"time"
)

// Entry represents a cached value
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time // zero means the entry never expires
}

// IsExpired returns true if the entry has expired
func (e *Entry[V]) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// MemoryCache is an in-memory cache with optional per-entry TTL.
type MemoryCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[V]

	stopCleanup chan struct{}
	stopOnce    sync.Once // Ensures Stop() is idempotent
}

// NewMemoryCache creates a new in-memory cache. When cleanupInterval is
// positive a background goroutine drops expired entries at that interval
// until Stop is called; otherwise expired entries are only dropped on Get.
func NewMemoryCache[V any](cleanupInterval time.Duration) *MemoryCache[V] {
	c := &MemoryCache[V]{
		entries:     make(map[string]*Entry[V]),
		stopCleanup: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if entry.IsExpired(time.Now()) {
		c.Invalidate(key)
		return zero, false
	}
	return entry.Value, true
}

// Set stores a value. A ttl of zero or less keeps it until invalidated.
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	entry := &Entry[V]{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate removes an entry from the cache
func (c *MemoryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes all entries from the cache
func (c *MemoryCache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[V])
	c.mu.Unlock()
}

func (c *MemoryCache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.prune(now)
		case <-c.stopCleanup:
			return
		}
	}
}

// prune removes all entries expired at now
func (c *MemoryCache[V]) prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the background cleanup goroutine
// Safe to call multiple times
func (c *MemoryCache[V]) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries in the cache (for testing)
func (c *MemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
