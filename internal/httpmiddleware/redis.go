package httpmiddleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows perMinute requests per key in each one-minute window.
func NewRedisLimiter(client redis.Cmdable, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(perMinute),
		window: time.Minute,
		prefix: "visitordesk:ratelimit:",
		now:    time.Now,
	}
}

// Allow increments the counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().Unix() / int64(l.window/time.Second)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, slot)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}
