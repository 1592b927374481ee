package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is one fixed-window budget.
type Window struct {
	Limit  int
	Length time.Duration
}

// Counter enforces fixed-window budgets on arbitrary keys.
type Counter struct {
	redis redis.UniversalClient
}

func New(redisClient redis.UniversalClient) *Counter {
	return &Counter{redis: redisClient}
}

// Hit counts one event on key and returns ErrRateLimited once the window's
// limit is exceeded. A non-positive limit disables the check.
func (c *Counter) Hit(ctx context.Context, key string, w Window) error {
	if w.Limit <= 0 {
		return nil
	}

	count, err := c.incrementWithTTL(ctx, key, w.Length)
	if err != nil {
		return err
	}
	if count > int64(w.Limit) {
		return ErrRateLimited
	}
	return nil
}

// RetryAfter returns how long until key's window closes, or 0.
func (c *Counter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Reset deletes the windows of keys.
func (c *Counter) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (c *Counter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// first hit opens the window
	if count == 1 {
		if err := c.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
