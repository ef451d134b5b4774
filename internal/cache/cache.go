// SPDX-License-Identifier: MIT

// Package cache holds the latest parameter values so API reads can avoid a
// round trip to the hardware. Entries expire: a stale reading is worse than
// a slow one.
package cache

import (
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/metrics"
)

// Cache is a TTL key-value store for parameter values.
type Cache interface {
	// Get retrieves a value. Returns false when absent or expired.
	Get(key string) (any, bool)
	// Set stores a value with the given TTL.
	Set(key string, value any, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Clear removes all values.
	Clear()
	// Stats returns cache counters.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	value      any
	expiration time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiration)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemory creates an in-memory cache. With a positive cleanupInterval a
// background janitor evicts expired entries; otherwise they linger until
// read.
func NewMemory(cleanupInterval time.Duration) Cache {
	c := &memoryCache{entries: make(map[string]*entry)}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		c.stats.Misses++
		metrics.IncCacheOp("memory", "get", "miss")
		return nil, false
	}
	c.stats.Hits++
	metrics.IncCacheOp("memory", "get", "hit")
	return e.value, true
}

func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{value: value, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
	c.mu.Unlock()
	metrics.IncCacheOp("memory", "set", "ok")
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Stop halts the background janitor.
func (c *memoryCache) Stop() {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// NewNoOp creates a cache that stores nothing, for configs with caching
// disabled.
func NewNoOp() Cache { return &noOpCache{} }

type noOpCache struct{}

func (c *noOpCache) Get(string) (any, bool)         { return nil, false }
func (c *noOpCache) Set(string, any, time.Duration) {}
func (c *noOpCache) Delete(string)                  {}
func (c *noOpCache) Clear()                         {}
func (c *noOpCache) Stats() Stats                   { return Stats{} }
