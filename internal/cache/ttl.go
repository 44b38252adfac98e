// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a read-through cache for values that are expensive to compute
// and may be served slightly stale, such as store aggregates behind the
// HTTP API. Expired entries are dropped on read.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry[V]
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

// NewTTL creates a cache whose entries live for ttl.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]ttlEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the live value for key.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expiresAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.value, true
	}

	c.mu.Lock()
	if ok {
		delete(c.entries, key)
	}
	c.misses++
	c.mu.Unlock()

	var zero V
	return zero, false
}

// Set stores value under key.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Errors are returned without caching.
func (c *TTL[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// HitRate returns hits as a percentage of lookups.
func (c *TTL[V]) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}
