// Package cache provides byte caches for fetched base-graph collections.
//
// Implementations:
//   - [FileCache]: one JSON entry file per key under a directory (CLI default)
//   - [RedisCache]: shared cache for server deployments
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer] so several deployments can share a backend
// without collisions.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with an optional TTL.
type Cache interface {
	// Get returns the cached data and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
