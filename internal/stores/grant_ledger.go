package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrGrantAlreadyUsed = errors.New("reset grant already used")
	ErrGrantBackend     = errors.New("reset grant backend unavailable")
)

// GrantLedger remembers redeemed reset grants until they would have expired.
type GrantLedger struct {
	redis  redis.UniversalClient
	prefix string
}

func NewGrantLedger(redisClient redis.UniversalClient, prefix string) *GrantLedger {
	if prefix == "" {
		prefix = "rcg"
	}
	return &GrantLedger{redis: redisClient, prefix: prefix}
}

// Redeem marks jti as used. It fails with ErrGrantAlreadyUsed on replay.
func (l *GrantLedger) Redeem(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := l.redis.SetNX(ctx, l.prefix+":"+jti, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGrantBackend, err)
	}
	if !ok {
		return ErrGrantAlreadyUsed
	}
	return nil
}

// Release undoes Redeem when the credential update that followed it failed.
func (l *GrantLedger) Release(ctx context.Context, jti string) error {
	if err := l.redis.Del(ctx, l.prefix+":"+jti).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGrantBackend, err)
	}
	return nil
}
