package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	cache "rcmos/internal/cache/iface"
	"rcmos/internal/logger"

	"github.com/redis/go-redis/v9"
)

const luaPopByScore = `
	local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
	if #due > 0 then
		redis.call('ZREM', KEYS[1], unpack(due))
	end
	return due
`

type redisCache struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisCache wraps a shared client; the client's lifecycle belongs to its provider.
func NewRedisCache(client *redis.Client, log logger.Logger) cache.Cache {
	return &redisCache{
		client: client,
		logger: log.With(logger.String("component", "redis_cache")),
	}
}

// Set stores a value with optional TTL
func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error("failed to set key",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrCacheMiss
	}
	if err != nil {
		r.logger.Error("failed to get key",
			logger.String("key", key),
			logger.Error(err))
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("failed to delete key",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *redisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		r.logger.Error("failed to zadd",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("redis zadd failed: %w", err)
	}
	return nil
}

func (r *redisCache) ZRem(ctx context.Context, key string, member string) error {
	if err := r.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zrem failed: %w", err)
	}
	return nil
}

// ZPopByScore runs a Lua script so two sweepers never pop the same member.
func (r *redisCache) ZPopByScore(ctx context.Context, key string, max float64, limit int) ([]string, error) {
	result, err := r.client.Eval(ctx, luaPopByScore, []string{key},
		strconv.FormatFloat(max, 'f', -1, 64), limit).Result()
	if err != nil {
		r.logger.Error("failed to eval pop script",
			logger.String("key", key),
			logger.Error(err))
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	return extractMembers(result), nil
}

// extractMembers converts a Lua array reply into strings.
func extractMembers(result any) []string {
	members := []string{}
	items, ok := result.([]any)
	if !ok {
		return members
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			members = append(members, s)
		}
	}
	return members
}
