package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/recipebook/internal/logger"
	"go.uber.org/zap"
)

// RedisClient wraps redis.Client with the handful of operations the search
// result cache needs
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to the Redis server at url (redis://host:port/db)
// and verifies the connection with a PING
func NewRedisClient(ctx context.Context, url string) (*RedisClient, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	opt.MaxRetries = 3
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.DialTimeout = 5 * time.Second

	return connect(ctx, redis.NewClient(opt))
}

// NewRedisClientFromClient wraps an existing go-redis client
func NewRedisClientFromClient(ctx context.Context, client *redis.Client) (*RedisClient, error) {
	return connect(ctx, client)
}

func connect(ctx context.Context, client *redis.Client) (*RedisClient, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Log.Info("Redis client connected",
		zap.String("address", client.Options().Addr),
	)

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Get retrieves a value. A missing key returns redis.Nil.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return rc.client.Get(ctx, key).Result()
}

// SetEx stores a value with expiration
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// IncrBy adds n to the integer at key, creating it at zero first, and
// returns the new value. IncrBy(ctx, key, 0) reads a counter.
func (rc *RedisClient) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, n).Result()
}

// Del deletes one or more keys
func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// DeleteByPattern removes every key matching pattern using SCAN, so large
// keyspaces never block the server the way KEYS would
func (rc *RedisClient) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	batch := make([]string, 0, 100)

	iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := rc.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	if len(batch) > 0 {
		if err := rc.client.Del(ctx, batch...).Err(); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}

	return deleted, nil
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
