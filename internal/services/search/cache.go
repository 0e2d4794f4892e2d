package search

import (
	"context"
	"sync"
	"time"

	"torrentplay/internal/domain"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]domain.SearchResult, bool, error)
	Set(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error
}

// MemoryCache is a bounded in-process TTL cache. When full, the entry that
// expires first is dropped.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]memoryEntry
	now        func() time.Time
}

type memoryEntry struct {
	results   []domain.SearchResult
	expiresAt time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.SearchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]domain.SearchResult(nil), e.results...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, results []domain.SearchResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = memoryEntry{
		results:   append([]domain.SearchResult(nil), results...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) evictOneLocked() {
	var victim string
	var earliest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = k, e.expiresAt
		}
	}
	delete(c.entries, victim)
}
