package cache

import (
	"sync"
	"time"
)

// Cache is a TTL cache owned by whoever constructs it. Entries are
// idempotent recomputations, so last-writer-wins is acceptable.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]*entry[V]
	ttl  time.Duration
	now  func() time.Time
}

type entry[V any] struct {
	value     V
	timestamp time.Time
}

// New creates a cache with the given entry lifetime.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]*entry[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a cached value if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, exists := c.data[key]
	if !exists {
		return zero, false
	}
	if c.now().Sub(e.timestamp) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Set stores a value.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &entry[V]{
		value:     value,
		timestamp: c.now(),
	}
}

// Delete removes one entry.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]*entry[V])
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Cleanup removes expired entries.
func (c *Cache[K, V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.data {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.data, key)
		}
	}
}

// StartCleanupLoop runs Cleanup on the given interval until the
// returned stop function is called.
func (c *Cache[K, V]) StartCleanupLoop(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// SetClock overrides the time source. Tests only.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
