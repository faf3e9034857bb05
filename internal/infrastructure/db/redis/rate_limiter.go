package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter is a sliding-window counter over a sorted set per key.
// Key format: ratelimit:<key>, members are attempt timestamps in nanoseconds.
type AttemptLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewAttemptLimiter allows at most limit attempts per key within window.
func NewAttemptLimiter(client *redis.Client, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixNano()
	k := rateLimitKey(key)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(now-l.window.Nanoseconds(), 10))
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now), Member: now})
	card := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return card.Val() <= int64(l.limit), nil
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}
