// Package cache provides a generic key/value store with TTL and prefix
// deletion, backed by Redis in production and by memory in tests.
package cache

import (
	"context"
	"time"
)

// Cache is the store consumed by the snapshot layer and the token service.
// Get returns (nil, nil) when the key is absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
