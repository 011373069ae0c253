// Package cache provides a bounded, concurrency-safe LRU with hit accounting.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU caches up to a fixed number of entries.
type LRU[K comparable, V any] struct {
	inner  *lru.Cache[K, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{inner: inner}, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *LRU[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

// GetOrCompute returns the cached value for key, computing and storing it on a miss.
// Errors are returned without caching.
func (c *LRU[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	c.inner.Add(key, v)
	return v, nil
}

func (c *LRU[K, V]) Purge() {
	c.inner.Purge()
}

func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}

// Stats returns hit and miss counts since creation.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
