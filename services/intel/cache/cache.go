// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a file-scoped TTL cache for code-intelligence
// query results.
//
// What distinguishes this from a generic TTL cache is the owner-file
// dimension: every entry records the source file its value was derived
// from, and InvalidateFile removes every entry tied to a file the moment
// it changes on disk. Entries therefore expire on content change, not
// only on time.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Default cache configuration.
const (
	// DefaultCapacity is the default maximum number of entries.
	DefaultCapacity = 500

	// DefaultTTL is the default time-to-live for cache entries.
	DefaultTTL = 5 * time.Minute
)

// Config configures a file-scoped cache.
type Config struct {
	// Capacity is the maximum number of entries. When an insert would
	// exceed it, the oldest-inserted entry is evicted first.
	Capacity int

	// TTL is the time-to-live for entries. Refreshing on hit does not
	// extend it.
	TTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		TTL:      DefaultTTL,
	}
}

// entry is one cached value with its expiry and owning file.
type entry[V any] struct {
	key       string
	value     V
	ownerFile string
	expiresAt time.Time
	elem      *list.Element
}

// FileScoped is a bounded key/value cache whose entries are additionally
// indexed by the source file they depend on.
//
// Description:
//
//	Get is a pure read-through: it returns the value only while the TTL
//	has not elapsed and never extends it. Set stamps a fresh expiry and
//	records the owner file. Eviction is strict insertion order — not
//	LRU — which is sufficient because keys are exact query parameters
//	and repeat queries within one TTL window are the common case.
//
// Thread Safety:
//
//	Safe for concurrent use. Reads take a shared lock so concurrent
//	lookups on disjoint keys do not serialize; hit/miss counters are
//	atomic so the read path never upgrades to the write lock.
type FileScoped[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	byFile  map[string]map[string]struct{}
	order   *list.List // insertion order, oldest at front

	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits          atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

// New creates a file-scoped cache with the given config.
//
// Example:
//
//	c := cache.New[[]lsp.Location](cache.DefaultConfig())
func New[V any](config Config) *FileScoped[V] {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &FileScoped[V]{
		entries:  make(map[string]*entry[V]),
		byFile:   make(map[string]map[string]struct{}),
		order:    list.New(),
		capacity: config.Capacity,
		ttl:      config.TTL,
		now:      time.Now,
	}
}

// Get returns the cached value for key, or false if the key is absent or
// expired. Expired entries are indistinguishable from missing ones.
func (c *FileScoped[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.expiresAt) {
		value := e.value
		c.mu.RUnlock()
		c.hits.Add(1)
		return value, true
	}
	c.mu.RUnlock()

	c.misses.Add(1)
	if ok {
		// Expired; drop it so the file index doesn't accumulate.
		c.mu.Lock()
		if e2, still := c.entries[key]; still && !c.now().Before(e2.expiresAt) {
			c.removeLocked(e2)
		}
		c.mu.Unlock()
	}
	return zero, false
}

// Set inserts or overwrites the value for key, stamping a fresh TTL and
// recording the owner file. If the insert would exceed capacity, the
// single oldest-inserted entry is evicted first.
func (c *FileScoped[V]) Set(key string, value V, ownerFile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}

	if len(c.entries) >= c.capacity {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front.Value.(*entry[V]))
			c.evictions.Add(1)
		}
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		ownerFile: ownerFile,
		expiresAt: c.now().Add(c.ttl),
	}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e

	keys, ok := c.byFile[ownerFile]
	if !ok {
		keys = make(map[string]struct{})
		c.byFile[ownerFile] = keys
	}
	keys[key] = struct{}{}
}

// InvalidateFile removes every entry whose owner file equals uri.
//
// Description:
//
//	Called when a file is edited so the cache never serves results
//	derived from stale content. Returns the number of entries removed.
func (c *FileScoped[V]) InvalidateFile(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byFile[uri]
	if !ok {
		return 0
	}

	removed := 0
	for key := range keys {
		if e, ok := c.entries[key]; ok {
			c.removeLocked(e)
			removed++
		}
	}
	c.invalidations.Add(int64(removed))
	return removed
}

// Clear removes all entries.
func (c *FileScoped[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.byFile = make(map[string]map[string]struct{})
	c.order.Init()
}

// Len returns the current number of entries, including any not yet
// swept expired ones.
func (c *FileScoped[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// removeLocked unlinks an entry from all three indexes. Caller must hold
// the write lock.
func (c *FileScoped[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
	if keys, ok := c.byFile[e.ownerFile]; ok {
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.byFile, e.ownerFile)
		}
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	// Entries is the current entry count.
	Entries int `json:"entries"`

	// Capacity is the configured maximum.
	Capacity int `json:"capacity"`

	// TTLSeconds is the configured TTL.
	TTLSeconds int64 `json:"ttl_seconds"`

	// Hits and Misses count Get outcomes since construction.
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// HitRate is Hits / (Hits + Misses), 0 when no lookups happened.
	HitRate float64 `json:"hit_rate"`

	// Evictions counts capacity evictions.
	Evictions int64 `json:"evictions"`

	// Invalidations counts entries removed by InvalidateFile.
	Invalidations int64 `json:"invalidations"`
}

// Snapshot returns current cache statistics.
func (c *FileScoped[V]) Snapshot() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:       entries,
		Capacity:      c.capacity,
		TTLSeconds:    int64(c.ttl.Seconds()),
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

// withClock swaps the time source; tests use this to force expiry.
func (c *FileScoped[V]) withClock(now func() time.Time) *FileScoped[V] {
	c.now = now
	return c
}
