// Package cache keeps short lived lookups the web server repeats on every
// request.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// LookupFunc resolves a key that is not cached
type LookupFunc func(ctx context.Context, key string) string

type cachedName struct {
	value     string
	createdAt time.Time
	lastUsed  time.Time
}

// NameCache caches display names per timebook user. Looking a name up
// runs getent, so the result is kept for maxAge.
type NameCache struct {
	lookup      LookupFunc
	cache       map[string]*cachedName
	mutex       sync.Mutex
	maxEntries  int
	maxAge      time.Duration
	cleanupTick time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
	hits        int64
	misses      int64

	now func() time.Time
}

// NewNameCache returns a cache in front of lookup and starts its cleanup
// goroutine. Call Stop when done.
func NewNameCache(lookup LookupFunc, maxEntries int, maxAge time.Duration) *NameCache {
	nc := &NameCache{
		lookup:      lookup,
		cache:       make(map[string]*cachedName),
		maxEntries:  maxEntries,
		maxAge:      maxAge,
		cleanupTick: maxAge,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	if nc.cleanupTick <= 0 {
		nc.cleanupTick = time.Minute
	}
	go nc.cleanup()
	return nc
}

// Get returns the cached name of key or looks it up
func (nc *NameCache) Get(ctx context.Context, key string) string {
	now := nc.now()

	nc.mutex.Lock()
	if entry, ok := nc.cache[key]; ok && now.Sub(entry.createdAt) <= nc.maxAge {
		entry.lastUsed = now
		nc.hits++
		nc.mutex.Unlock()
		return entry.value
	}
	nc.misses++
	nc.mutex.Unlock()

	value := nc.lookup(ctx, key)

	nc.mutex.Lock()
	nc.cache[key] = &cachedName{value: value, createdAt: now, lastUsed: now}
	nc.evictIfNeeded()
	nc.mutex.Unlock()
	return value
}

// Stats returns hits, misses and the number of entries
func (nc *NameCache) Stats() (hits, misses int64, entries int) {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	return nc.hits, nc.misses, len(nc.cache)
}

// evictIfNeeded drops the least recently used entry (lock held)
func (nc *NameCache) evictIfNeeded() {
	if nc.maxEntries <= 0 || len(nc.cache) <= nc.maxEntries {
		return
	}
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range nc.cache {
		if oldestKey == "" || entry.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastUsed
		}
	}
	delete(nc.cache, oldestKey)
}

func (nc *NameCache) cleanup() {
	ticker := time.NewTicker(nc.cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			nc.cleanupExpired()
		case <-nc.stopCleanup:
			return
		}
	}
}

func (nc *NameCache) cleanupExpired() {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	now := nc.now()
	expired := 0
	for key, entry := range nc.cache {
		if now.Sub(entry.createdAt) > nc.maxAge {
			delete(nc.cache, key)
			expired++
		}
	}
	if expired > 0 {
		log.Printf("[CACHE]: dropped %d expired names", expired)
	}
}

// Stop ends the cleanup goroutine
func (nc *NameCache) Stop() {
	nc.stopOnce.Do(func() { close(nc.stopCleanup) })
}
