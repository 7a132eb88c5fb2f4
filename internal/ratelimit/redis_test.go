package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisStore_Increment(t *testing.T) {
	ctx := context.Background()

	t.Run("首次计数设置过期时间", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRedisStore(client, "test:")

		w, err := store.Increment(ctx, "mail:1.2.3.4", time.Minute)
		require.NoError(t, err)

		assert.Equal(t, int64(1), w.Count)
		assert.Equal(t, time.Minute, mr.TTL("test:mail:1.2.3.4"))
		assert.WithinDuration(t, time.Now().Add(time.Minute), w.ResetAt, 2*time.Second)
	})

	t.Run("后续计数不延长窗口", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRedisStore(client, "test:")

		_, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)

		mr.FastForward(20 * time.Second)

		w, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.Count)
		assert.Equal(t, 40*time.Second, mr.TTL("test:k"))
	})

	t.Run("窗口过期后重新计数", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRedisStore(client, "test:")

		_, _ = store.Increment(ctx, "k", time.Minute)
		_, _ = store.Increment(ctx, "k", time.Minute)

		mr.FastForward(time.Minute)

		w, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
	})

	t.Run("不足 1ms 的窗口向上取整", func(t *testing.T) {
		mr, client := newTestRedis(t)
		limiter := NewLimiter(Rule{Name: "mail", Max: 1, Window: 500 * time.Microsecond}, NewRedisStore(client, "test:"))

		d1, err := limiter.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, d1.Allowed)
		assert.Equal(t, time.Millisecond, mr.TTL("test:mail:1.1.1.1"))

		d2, err := limiter.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.False(t, d2.Allowed)
	})

	t.Run("Redis 不可用时返回错误", func(t *testing.T) {
		client := goredis.NewClient(&goredis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 200 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()
		store := NewRedisStore(client, "test:")

		_, err := store.Increment(ctx, "k", time.Minute)
		assert.Error(t, err)
	})

	t.Run("与限流器配合", func(t *testing.T) {
		_, client := newTestRedis(t)
		limiter := NewLimiter(Rule{Name: "global", Max: 1, Window: time.Minute}, NewRedisStore(client, "test:"))

		d1, err := limiter.Allow(ctx, "9.9.9.9")
		require.NoError(t, err)
		assert.True(t, d1.Allowed)

		d2, err := limiter.Allow(ctx, "9.9.9.9")
		require.NoError(t, err)
		assert.False(t, d2.Allowed)
	})
}
