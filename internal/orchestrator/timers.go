package orchestrator

import (
	"context"
	"fmt"
	"time"

	cache "rcmos/internal/cache/iface"
	"rcmos/internal/domain"
)

const DefaultTimersKey = "rcmos:timers:code_deadline"

// Timers is the set of pending code deadlines, scored by due time.
type Timers interface {
	Register(ctx context.Context, instanceID string, deadline time.Time) error
	Cancel(ctx context.Context, instanceID string) error
	// PopDue removes and returns up to limit instances due at or before now.
	PopDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type cacheTimers struct {
	cache cache.Cache
	key   string
}

func NewCacheTimers(c cache.Cache, key string) Timers {
	if key == "" {
		key = DefaultTimersKey
	}
	return &cacheTimers{cache: c, key: key}
}

func (t *cacheTimers) Register(ctx context.Context, instanceID string, deadline time.Time) error {
	if err := t.cache.ZAdd(ctx, t.key, float64(deadline.UnixMilli()), instanceID); err != nil {
		return domain.Transport("register timer", err)
	}
	return nil
}

func (t *cacheTimers) Cancel(ctx context.Context, instanceID string) error {
	if err := t.cache.ZRem(ctx, t.key, instanceID); err != nil {
		return fmt.Errorf("failed to cancel timer: %w", err)
	}
	return nil
}

func (t *cacheTimers) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := t.cache.ZPopByScore(ctx, t.key, float64(now.UnixMilli()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to pop due timers: %w", err)
	}
	return ids, nil
}
