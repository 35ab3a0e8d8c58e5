package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/whitelist"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

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

func newTestLimiter(limit int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(limit, window, 0, zap.NewNop())
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_Admit(t *testing.T) {
	ctx := context.Background()

	t.Run("third call in window is rejected", func(t *testing.T) {
		l, clock := newTestLimiter(2, 60*time.Second)

		require.NoError(t, l.Admit(ctx, "1.2.3.4"))
		clock.Advance(10 * time.Second)
		require.NoError(t, l.Admit(ctx, "1.2.3.4"))
		clock.Advance(5 * time.Second)

		err := l.Admit(ctx, "1.2.3.4")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrRateLimitExceeded)

		var rl *core.RateLimitError
		require.True(t, errors.As(err, &rl))
		assert.Equal(t, 45, rl.RetryAfter)
	})

	t.Run("identities are independent", func(t *testing.T) {
		l, _ := newTestLimiter(1, time.Minute)
		require.NoError(t, l.Admit(ctx, "a"))
		require.NoError(t, l.Admit(ctx, "b"))
		assert.Error(t, l.Admit(ctx, "a"))
	})

	t.Run("window slides", func(t *testing.T) {
		l, clock := newTestLimiter(2, time.Minute)
		require.NoError(t, l.Admit(ctx, "a"))
		clock.Advance(30 * time.Second)
		require.NoError(t, l.Admit(ctx, "a"))
		clock.Advance(29 * time.Second)
		assert.Error(t, l.Admit(ctx, "a"))

		// first timestamp now sits exactly on the window start and is dropped
		clock.Advance(1 * time.Second)
		assert.NoError(t, l.Admit(ctx, "a"))
		assert.Error(t, l.Admit(ctx, "a"))
	})

	t.Run("rejections are not recorded", func(t *testing.T) {
		l, clock := newTestLimiter(1, time.Minute)
		require.NoError(t, l.Admit(ctx, "a"))
		for i := 0; i < 5; i++ {
			clock.Advance(10 * time.Second)
			assert.Error(t, l.Admit(ctx, "a"))
		}
		clock.Advance(10 * time.Second)
		assert.NoError(t, l.Admit(ctx, "a"))
	})

	t.Run("retry after is at least one second", func(t *testing.T) {
		l, clock := newTestLimiter(1, time.Minute)
		require.NoError(t, l.Admit(ctx, "a"))
		clock.Advance(59*time.Second + 900*time.Millisecond)

		var rl *core.RateLimitError
		require.True(t, errors.As(l.Admit(ctx, "a"), &rl))
		assert.Equal(t, 1, rl.RetryAfter)
	})

	t.Run("disabled when limit is not positive", func(t *testing.T) {
		for _, limit := range []int{0, -1} {
			l, _ := newTestLimiter(limit, time.Minute)
			for i := 0; i < 100; i++ {
				require.NoError(t, l.Admit(ctx, "a"))
			}
			assert.Equal(t, 0, l.Size())
		}
	})

	t.Run("concurrent admissions never exceed the limit", func(t *testing.T) {
		l, _ := newTestLimiter(10, time.Minute)
		var admitted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Admit(ctx, "same") == nil {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(10), admitted.Load())
	})
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	ctx := context.Background()
	require.NoError(t, l.Admit(ctx, "old"))
	clock.Advance(45 * time.Second)
	require.NoError(t, l.Admit(ctx, "recent"))
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Cleanup())
	assert.Equal(t, 1, l.Size())
}

func TestMemoryLimiter_Stop(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute, 10*time.Millisecond, zap.NewNop())
	time.Sleep(30 * time.Millisecond)
	l.Stop()
	l.Stop()
}

func TestExemptLimiter(t *testing.T) {
	ctx := context.Background()
	inner, _ := newTestLimiter(1, time.Minute)
	checker, err := whitelist.NewChecker([]string{"10.0.0.0/8"}, zap.NewNop())
	require.NoError(t, err)
	l := NewExemptLimiter(inner, checker)

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Admit(ctx, "10.1.1.1"))
	}
	assert.NoError(t, l.Admit(ctx, "8.8.8.8"))
	assert.Error(t, l.Admit(ctx, "8.8.8.8"))
	assert.Equal(t, core.RateLimiter(inner), l.Unwrap())
}

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *fakeClock) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(client, limit, window, "test", zap.NewNop())
	l.now = clock.Now
	t.Cleanup(func() { _ = l.Close() })
	return l, clock
}

func TestRedisLimiter_Admit(t *testing.T) {
	ctx := context.Background()

	type call struct {
		advance    time.Duration
		identity   string
		retryAfter int // 0 means admitted
	}

	tests := []struct {
		name   string
		limit  int
		window time.Duration
		calls  []call
	}{
		{
			name:   "third call in window is rejected",
			limit:  2,
			window: time.Minute,
			calls: []call{
				{0, "1.2.3.4", 0},
				{10 * time.Second, "1.2.3.4", 0},
				{5 * time.Second, "1.2.3.4", 45},
			},
		},
		{
			name:   "identities are independent",
			limit:  1,
			window: time.Minute,
			calls: []call{
				{0, "a", 0},
				{0, "b", 0},
				{0, "a", 60},
			},
		},
		{
			name:   "window slides",
			limit:  2,
			window: time.Minute,
			calls: []call{
				{0, "a", 0},
				{30 * time.Second, "a", 0},
				{29 * time.Second, "a", 1},
				{1 * time.Second, "a", 0},
				{0, "a", 30},
			},
		},
		{
			name:   "rejections are not recorded",
			limit:  1,
			window: time.Minute,
			calls: []call{
				{0, "a", 0},
				{20 * time.Second, "a", 40},
				{20 * time.Second, "a", 20},
				{20 * time.Second, "a", 0},
			},
		},
		{
			name:   "disabled when limit is not positive",
			limit:  0,
			window: time.Minute,
			calls: []call{
				{0, "a", 0},
				{0, "a", 0},
				{0, "a", 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, clock := newTestRedisLimiter(t, tt.limit, tt.window)

			for i, c := range tt.calls {
				clock.Advance(c.advance)
				err := l.Admit(ctx, c.identity)
				if c.retryAfter == 0 {
					require.NoError(t, err, "call %d", i+1)
					continue
				}

				var rl *core.RateLimitError
				require.True(t, errors.As(err, &rl), "call %d: %v", i+1, err)
				assert.ErrorIs(t, err, core.ErrRateLimitExceeded)
				assert.Equal(t, c.retryAfter, rl.RetryAfter, "call %d", i+1)
			}
		})
	}
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	l := NewRedisLimiter(client, 1, time.Minute, "test", zap.NewNop())
	defer l.Close()

	assert.NoError(t, l.Admit(context.Background(), "a"))
	assert.NoError(t, l.Admit(context.Background(), "a"))
	assert.Equal(t, "test:a", l.key("a"))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 60, retryAfter(time.Minute, 0))
	assert.Equal(t, 31, retryAfter(time.Minute, 29500*time.Millisecond))
	assert.Equal(t, 1, retryAfter(time.Minute, 2*time.Minute))
}
