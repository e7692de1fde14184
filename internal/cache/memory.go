package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process tier. With maxItems set it stops accepting
// new keys once full, after first purging expired entries.
type MemoryCache struct {
	items    *gocache.Cache
	maxItems int
}

// NewMemoryCache creates a cache whose entries live for ttl by default
func NewMemoryCache(ttl time.Duration, maxItems int) *MemoryCache {
	cleanup := ttl
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryCache{
		items:    gocache.New(ttl, cleanup),
		maxItems: maxItems,
	}
}

// Get returns a copy of the stored body
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	body := v.([]byte)
	return append([]byte(nil), body...), true
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.full(key) {
		return ErrFull
	}
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) full(key string) bool {
	if c.maxItems <= 0 || c.items.ItemCount() < c.maxItems {
		return false
	}
	if _, exists := c.items.Get(key); exists {
		return false
	}
	c.items.DeleteExpired()
	return c.items.ItemCount() >= c.maxItems
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.items.Flush()
	return nil
}

// Len counts stored entries, including expired ones not yet purged
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
