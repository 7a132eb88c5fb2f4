package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_Increment(t *testing.T) {
	ctx := context.Background()

	t.Run("同一窗口内递增", func(t *testing.T) {
		clock := newFakeClock()
		store := newMemoryStore(clock.Now)

		w1, err := store.Increment(ctx, "mail:1.2.3.4", time.Minute)
		require.NoError(t, err)
		w2, err := store.Increment(ctx, "mail:1.2.3.4", time.Minute)
		require.NoError(t, err)

		assert.Equal(t, int64(1), w1.Count)
		assert.Equal(t, int64(2), w2.Count)
		assert.Equal(t, clock.Now().Add(time.Minute), w2.ResetAt)
	})

	t.Run("窗口过期后重新计数", func(t *testing.T) {
		clock := newFakeClock()
		store := newMemoryStore(clock.Now)

		_, _ = store.Increment(ctx, "k", time.Minute)
		_, _ = store.Increment(ctx, "k", time.Minute)

		clock.Advance(time.Minute)

		w, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
		assert.Equal(t, clock.Now().Add(time.Minute), w.ResetAt)
	})

	t.Run("不同键互不影响", func(t *testing.T) {
		store := newMemoryStore(newFakeClock().Now)

		_, _ = store.Increment(ctx, "a", time.Minute)
		w, err := store.Increment(ctx, "b", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), w.Count)
	})

	t.Run("窗口长度非法", func(t *testing.T) {
		store := NewMemoryStore()

		_, err := store.Increment(ctx, "k", 0)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("并发计数不丢失", func(t *testing.T) {
		store := NewMemoryStore()

		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = store.Increment(ctx, "k", time.Hour)
			}()
		}
		wg.Wait()

		w, err := store.Increment(ctx, "k", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(101), w.Count)
	})
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(clock.Now)

	_, _ = store.Increment(ctx, "short", time.Second)
	_, _ = store.Increment(ctx, "long", time.Hour)

	clock.Advance(2 * time.Second)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewLimiter(Rule{Name: "mail", Max: 2, Window: time.Minute}, newMemoryStore(clock.Now))

	d1, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d1.Allowed)
	assert.Equal(t, int64(1), d1.Remaining)
	assert.Equal(t, int64(2), d1.Limit)

	d2, _ := limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, d2.Allowed)
	assert.Equal(t, int64(0), d2.Remaining)

	d3, _ := limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, d3.Allowed)
	assert.Equal(t, int64(0), d3.Remaining)
	assert.Equal(t, time.Minute, d3.RetryAfter(clock.Now()))

	other, _ := limiter.Allow(ctx, "5.6.7.8")
	assert.True(t, other.Allowed)

	clock.Advance(time.Minute)

	d4, _ := limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, d4.Allowed)
}

func TestDecision_RetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Second, Decision{ResetAt: now}.RetryAfter(now))
	assert.Equal(t, 30*time.Second, Decision{ResetAt: now.Add(30 * time.Second)}.RetryAfter(now))
}
