package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements a two-tier cache (memory + shared remote)
type LayeredCache struct {
	memory Cache
	remote Cache
}

// NewLayeredCache creates a new layered cache. A nil remote leaves memory as the only tier.
func NewLayeredCache(memory Cache, remote Cache) *LayeredCache {
	return &LayeredCache{
		memory: memory,
		remote: remote,
	}
}

// Get retrieves a value (checks memory first, then remote)
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := c.memory.Get(ctx, key); found {
		return val, true
	}

	if c.remote == nil {
		return nil, false
	}

	if val, found := c.remote.Get(ctx, key); found {
		// Promote to memory
		_ = c.memory.Set(ctx, key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both tiers. A full memory tier does not stop the remote write.
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := c.memory.Set(ctx, key, value, ttl)
	if c.remote != nil {
		err = errors.Join(err, c.remote.Set(ctx, key, value, ttl))
	}
	return err
}

// Delete removes a value from both tiers
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	err := c.memory.Delete(ctx, key)
	if c.remote != nil {
		err = errors.Join(err, c.remote.Delete(ctx, key))
	}
	return err
}

// Clear removes all values from both tiers
func (c *LayeredCache) Clear(ctx context.Context) error {
	err := c.memory.Clear(ctx)
	if c.remote != nil {
		err = errors.Join(err, c.remote.Clear(ctx))
	}
	return err
}
