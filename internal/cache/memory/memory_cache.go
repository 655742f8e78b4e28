// Package memory is an in-process Cache used by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	cache "rcmos/internal/cache/iface"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]entry
	zsets  map[string]map[string]float64
}

func NewMemoryCache() cache.Cache {
	return &memoryCache{
		values: make(map[string]entry),
		zsets:  make(map[string]map[string]float64),
	}
}

func (c *memoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.values[key] = e
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.values[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return "", cache.ErrCacheMiss
	}
	return e.value, nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.zsets, key)
	return nil
}

func (c *memoryCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.zsets[key]
	if !ok {
		set = make(map[string]float64)
		c.zsets[key] = set
	}
	set[member] = score
	return nil
}

func (c *memoryCache) ZRem(ctx context.Context, key string, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.zsets[key], member)
	return nil
}

func (c *memoryCache) ZPopByScore(ctx context.Context, key string, max float64, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.zsets[key]
	due := make([]string, 0)
	for member, score := range set {
		if score <= max {
			due = append(due, member)
		}
	}
	sort.Slice(due, func(i, j int) bool { return set[due[i]] < set[due[j]] })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, member := range due {
		delete(set, member)
	}
	return due, nil
}
