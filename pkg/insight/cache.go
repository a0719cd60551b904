// Package insight generates and caches short natural-language summaries for
// rendered charts. Generation stands in for an expensive generative call, so
// results are memoized by a content-derived key: the same data always yields
// the same insight without paying the generation cost twice.
package insight

import (
	"context"
	"errors"
	"sync"
)

// Cache stores generated insight text by key.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached insight and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores an insight under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error
}

// MemoryCache is an in-process Cache with a fixed capacity. When full, the
// oldest inserted entry is evicted, which bounds growth across long runs.
type MemoryCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]string
	order    []string
}

// DefaultCapacity bounds a MemoryCache when no explicit capacity is given.
const DefaultCapacity = 1024

// NewMemoryCache creates a MemoryCache holding at most capacity entries.
// A capacity <= 0 uses DefaultCapacity.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
	}
}

// Get returns the cached insight for key.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	return v, ok, nil
}

// Set stores an insight, evicting the oldest entry when at capacity.
func (c *MemoryCache) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("insight cache key cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = value
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
