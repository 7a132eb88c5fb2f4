package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrementScript 原子地计数，只在新窗口的第一次请求时设置过期时间
var incrementScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore 基于 Redis 的固定窗口计数，多实例共享
type RedisStore struct {
	client goredis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisStore 创建 Redis 计数存储
func NewRedisStore(client goredis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Increment 实现 Store
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Window, error) {
	if window <= 0 {
		return Window{}, ErrInvalidWindow
	}

	// PEXPIRE 以毫秒为单位，0 会直接删除计数
	ttl := (window + time.Millisecond - 1) / time.Millisecond

	vals, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, int64(ttl)).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: redis increment %s: %w", key, err)
	}
	if len(vals) != 2 {
		return Window{}, fmt.Errorf("ratelimit: unexpected redis reply %v", vals)
	}

	return Window{
		Count:   vals[0],
		ResetAt: s.now().Add(time.Duration(vals[1]) * time.Millisecond),
	}, nil
}
