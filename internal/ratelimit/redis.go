package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/email-classifier/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// admitScript prunes, counts and appends in one round trip so the
// check-and-append is atomic across every process sharing the key.
// Scores are unix milliseconds. Returns {admitted, oldest_score}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, 0}
`)

// RedisLimiter is a sliding-window limiter shared through Redis
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisLimiter creates a new Redis backed limiter
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration, prefix string, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

// Admit records a request for identity or rejects it with a *core.RateLimitError.
// Redis failures admit the request.
func (l *RedisLimiter) Admit(ctx context.Context, identity string) error {
	if l.limit <= 0 {
		return nil
	}

	now := l.now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := admitScript.Run(ctx, l.client, []string{l.key(identity)},
		nowMs, l.window.Milliseconds(), l.limit, member).Int64Slice()
	if err != nil {
		l.logger.Warn("Rate limiter backend unavailable, admitting request",
			zap.String("identity", identity),
			zap.Error(err))
		return nil
	}
	if len(res) != 2 {
		l.logger.Warn("Unexpected rate limiter reply", zap.Int64s("reply", res))
		return nil
	}
	if res[0] == 1 {
		return nil
	}

	elapsed := time.Duration(nowMs-res[1]) * time.Millisecond
	return &core.RateLimitError{RetryAfter: retryAfter(l.window, elapsed)}
}

// Close closes the Redis client
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func (l *RedisLimiter) key(identity string) string {
	return fmt.Sprintf("%s:%s", l.prefix, identity)
}
