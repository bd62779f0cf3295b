// Package cachemanager provides a small generic caching layer used where the
// repository tolerates slightly stale reads, such as workspace listings.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a TTL'd key-value cache. Implementations must be safe for
// concurrent use.
type CacheManager[K comparable, V any] interface {
	// Get returns the cached value for key, if present and unexpired.
	Get(ctx context.Context, key K) (V, bool)
	// GetWithRefresh is Get, but a hit extends the entry's TTL.
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	// Delete removes the entries for the given keys.
	Delete(ctx context.Context, keys ...K) error
	// Flush removes every entry.
	Flush(ctx context.Context) error
}
