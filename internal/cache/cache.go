// SPDX-License-Identifier: MIT

// Package cache is a small in-process TTL cache. The linker uses it for
// resolved barcodes when no Redis is configured; entries are plain
// strings and expire passively on read plus via a background janitor.
package cache

import (
	"sync"
	"time"
)

// Store is the string-valued TTL cache contract.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
	Len() int
}

type item struct {
	value     string
	expiresAt time.Time
}

func (it item) expired(now time.Time) bool { return now.After(it.expiresAt) }

// TTLCache is the in-memory Store. A janitor goroutine sweeps expired
// entries so abandoned keys do not pile up between reads.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]item

	stop chan struct{}
	once sync.Once

	now func() time.Time
}

// New builds a TTLCache and starts its janitor. sweepInterval <= 0
// disables background sweeping; expiry then happens on access only.
func New(sweepInterval time.Duration) *TTLCache {
	c := &TTLCache{
		items: make(map[string]item),
		stop:  make(chan struct{}),
		now:   time.Now,
	}
	if sweepInterval > 0 {
		go c.janitor(sweepInterval)
	}
	return c
}

// Get returns a live entry's value.
func (c *TTLCache) Get(key string) (string, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || it.expired(c.now()) {
		return "", false
	}
	return it.value, true
}

// Set stores value under key for ttl. Non-positive ttl stores nothing.
func (c *TTLCache) Set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes one entry.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts live entries.
func (c *TTLCache) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the janitor. Safe to call more than once.
func (c *TTLCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *TTLCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *TTLCache) sweep() {
	now := c.now()
	c.mu.Lock()
	for key, it := range c.items {
		if it.expired(now) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()
}
