package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "redis://127.0.0.1:1/0")
	assert.Error(t, err)
}

func TestNilClientClose(t *testing.T) {
	var rc *RedisClient
	assert.NoError(t, rc.Close())
}

// Runs against a live Redis when REDIS_URL is set
func TestRedisClient_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis integration test")
	}

	ctx := context.Background()
	rc, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	defer rc.Close()

	require.NoError(t, rc.SetEx(ctx, "test:cache:a", "1", time.Minute))
	require.NoError(t, rc.SetEx(ctx, "test:cache:b", "2", time.Minute))

	val, err := rc.Get(ctx, "test:cache:a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	deleted, err := rc.DeleteByPattern(ctx, "test:cache:*")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = rc.Get(ctx, "test:cache:a")
	assert.ErrorIs(t, err, redis.Nil)

	require.NoError(t, rc.Del(ctx, "test:cache:counter"))
	n, err := rc.IncrBy(ctx, "test:cache:counter", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	n, err = rc.IncrBy(ctx, "test:cache:counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, rc.Del(ctx, "test:cache:counter"))
}
