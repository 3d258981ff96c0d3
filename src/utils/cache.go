package utils

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a small in-process TTL cache keyed by K. It is used to avoid
// re-reading saved report definitions on every scheduled run.
type Cache[K comparable, V any] struct {
	items map[K]cacheEntry[V]
	ttl   time.Duration
	mutex sync.RWMutex
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]cacheEntry[V]),
		ttl:   ttl,
	}
}

// Set stores a value under key until the cache TTL elapses.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Get retrieves the cached value, reporting whether a live entry exists.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.items[key]
	if !ok || time.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Delete removes the cached value for key.
func (c *Cache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}
