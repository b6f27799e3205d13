package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tc.com/token-radar/pkg/logging"
	"tc.com/token-radar/pkg/metrics"
)

// RedisCache implements Cache on a Redis connection.
type RedisCache struct {
	client *redis.Client
	logger *logging.Logger
}

var _ Cache = (*RedisCache)(nil)

// RedisConfig holds the connection parameters for the Redis cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *logging.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Connected to Redis", "addr", client.Options().Addr)
	return &RedisCache{client: client, logger: logger}, nil
}

// Get returns the value for key, or nil when absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheOp("get", "miss")
			return nil, nil
		}
		metrics.RecordCacheOp("get", "error")
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	metrics.RecordCacheOp("get", "hit")
	return data, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		metrics.RecordCacheOp("set", "error")
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	metrics.RecordCacheOp("set", "ok")
	return nil
}

// DeletePattern removes all keys beginning with prefix and returns the count.
// Uses SCAN rather than KEYS so a large keyspace does not block the server.
func (c *RedisCache) DeletePattern(ctx context.Context, prefix string) (int, error) {
	var deleted int
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("Failed to delete cache key", "key", iter.Val(), "error", err)
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}
	return deleted, nil
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
