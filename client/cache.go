package client

import (
	"context"
	"sync"
)

// capabilityCache holds one server-advertised listing (tools, resources,
// prompts). A list_changed notification invalidates it; the next read
// refetches the full listing and replaces the snapshot atomically, so readers
// always see either the old complete set or the new complete set.
type capabilityCache[T any] struct {
	mu    sync.Mutex
	items []T
	valid bool
}

// Get returns the cached items, fetching via fn when the cache is stale.
func (c *capabilityCache[T]) Get(ctx context.Context, fn func(ctx context.Context) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return c.items, nil
	}
	items, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	c.items = items
	c.valid = true
	return items, nil
}

// Invalidate marks the snapshot stale without touching it. Readers keep the
// old set until a refetch succeeds.
func (c *capabilityCache[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// Cached returns the current snapshot without fetching.
func (c *capabilityCache[T]) Cached() ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.valid
}
