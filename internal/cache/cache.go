// SPDX-License-Identifier: MIT

// Package cache provides a metadata cache with TTL support.
package cache

import (
	"sync"
	"time"
)

// MetadataCache stores the most recent metadata map per resource identifier.
type MetadataCache interface {
	// Get retrieves the cached metadata for a key. Returns false if not
	// found or expired.
	Get(key string) (map[string]string, bool)
	// Set stores metadata for a key with the specified TTL.
	Set(key string, metadata map[string]string, ttl time.Duration)
	// Delete removes a key.
	Delete(key string)
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	metadata   map[string]string
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is an in-memory implementation of MetadataCache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemoryCache creates an in-memory cache with automatic cleanup. A zero
// cleanupInterval disables the janitor.
func NewMemoryCache(cleanupInterval time.Duration) MetadataCache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

func (c *memoryCache) Get(key string) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.isExpired() {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	// Copy so callers cannot mutate the cached map.
	out := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out, true
}

func (c *memoryCache) Set(key string, metadata map[string]string, ttl time.Duration) {
	stored := make(map[string]string, len(metadata))
	for k, v := range metadata {
		stored[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		metadata:   stored,
		expiration: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
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
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}

	c.stats.Evictions += int64(count)
	return count
}

// Stop stops the background cleanup goroutine.
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
