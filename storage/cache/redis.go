// Package cache implements core.Cache and core.RateLimiter over redis, or in memory.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
)

const (
	keyPrefix       = "elimu:"
	rateLimitPrefix = keyPrefix + "rate_limit:"
	scanCount       = 100
)

// NewRedisClient connects to redis and pings it.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type redisCache struct {
	client *redis.Client
}

var _ core.Cache = (*redisCache)(nil) // interface compliance check

func NewRedisCache(client *redis.Client) *redisCache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting cached value")
	}
	return val, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, keyPrefix+key, val, ttl).Err(), "caching value")
}

// DeletePrefix scans the matching keys instead of using KEYS, which blocks the server.
func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+prefix+"*", scanCount).Iterator()
	keys := make([]string, 0, scanCount)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanCount {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrap(err, "deleting cached values")
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scanning cached values")
	}
	if len(keys) > 0 {
		return errors.Wrap(c.client.Del(ctx, keys...).Err(), "deleting cached values")
	}
	return nil
}

// redisLimiter is a fixed window counter: the first hit of a window sets the key expiry.
type redisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

var _ core.RateLimiter = (*redisLimiter)(nil) // interface compliance check

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *redisLimiter {
	return &redisLimiter{client: client, limit: int64(limit), window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = rateLimitPrefix + key
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "counting hit")
	}
	if count == 1 {
		if err = l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, errors.Wrap(err, "setting rate limit window")
		}
	}
	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "getting rate limit window")
	}
	if ttl < 0 {
		// the expiry got lost; start a new window
		_ = l.client.Expire(ctx, key, l.window).Err()
		ttl = l.window
	}
	return false, ttl, nil
}
