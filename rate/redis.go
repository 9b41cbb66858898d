package rate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otpthrottle"

// RedisLimiter counts requests in Redis so the budget is shared across
// horizontally scaled instances. It uses INCR with a TTL set on the first
// hit, which gives fixed-window rather than sliding-window semantics; the
// approximation is acceptable for abuse throttling and keeps the check to a
// single round-trip.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedisLimiter creates a [RedisLimiter] backed by the given client.
func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		config: cfg.withDefaults(),
	}
}

func (l *RedisLimiter) key(key string) string {
	return redisKeyPrefix + ":" + key
}

// Allow increments the key's window counter and returns [ErrLimited] once
// the budget is exceeded, or [ErrUnavailable] when Redis cannot be reached.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := l.key(key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(l.config.Limit) {
		return ErrLimited
	}

	return nil
}
