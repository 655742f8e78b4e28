package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the key/value and sorted-set surface the services rely on.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get returns ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// Sorted set operations (for timer deadlines)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	// ZPopByScore atomically removes and returns up to limit members with score <= max.
	ZPopByScore(ctx context.Context, key string, max float64, limit int) ([]string, error)
}
