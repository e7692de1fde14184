// Package cache stores raw evidence responses keyed by request URL, in process
// and optionally in Redis so several instances share lookups.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// KeyPrefix namespaces every key written by chainbreaker
const KeyPrefix = "chainbreaker:v1:"

// ErrFull is returned by a bounded cache that cannot take another entry
var ErrFull = errors.New("cache full")

// Cache holds response bodies. A ttl of 0 means the implementation default.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Key derives the cache key for a request URL. URLs may carry API keys, so
// only a digest is stored.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return KeyPrefix + hex.EncodeToString(sum[:])
}
