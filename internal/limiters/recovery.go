package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agriskills/goRecovery/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRecoveryRateLimited      = errors.New("recovery rate limited")
	ErrRecoveryRedisUnavailable = errors.New("recovery limiter redis unavailable")
)

type RecoveryConfig struct {
	// KeyPrefix namespaces the counter keys. Empty selects "rl".
	KeyPrefix                 string
	EnableDestinationThrottle bool
	EnableIPThrottle          bool
	MaxIssuesPerWindow        int
	MaxConfirmsPerWindow      int
	Window                    time.Duration
}

type RecoveryLimiter struct {
	counter *rate.Counter
	config  RecoveryConfig
}

func NewRecoveryLimiter(redisClient redis.UniversalClient, cfg RecoveryConfig) *RecoveryLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl"
	}
	return &RecoveryLimiter{
		counter: rate.New(redisClient),
		config:  cfg,
	}
}

// CheckIssue counts a reset-link or code request for destination (an email
// or an E.164 number).
func (l *RecoveryLimiter) CheckIssue(ctx context.Context, destination, ip string) error {
	if l == nil {
		return nil
	}
	w := rate.Window{Limit: l.config.MaxIssuesPerWindow, Length: l.config.Window}
	if l.config.EnableDestinationThrottle {
		if err := l.hit(ctx, l.issueDestinationKey(destination), w); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, l.issueIPKey(ip), w); err != nil {
			return err
		}
	}
	return nil
}

// CheckConfirm counts a code or link redemption against ticket.
func (l *RecoveryLimiter) CheckConfirm(ctx context.Context, ticket, ip string) error {
	if l == nil {
		return nil
	}
	w := rate.Window{Limit: l.config.MaxConfirmsPerWindow, Length: l.config.Window}
	if l.config.EnableDestinationThrottle {
		if err := l.hit(ctx, l.confirmTicketKey(ticket), w); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.hit(ctx, l.confirmIPKey(ip), w); err != nil {
			return err
		}
	}
	return nil
}

// RetryAfter reports the remaining issue window for destination.
func (l *RecoveryLimiter) RetryAfter(ctx context.Context, destination string) time.Duration {
	if l == nil {
		return 0
	}
	d, err := l.counter.RetryAfter(ctx, l.issueDestinationKey(destination))
	if err != nil {
		return 0
	}
	return d
}

// ResetIssue clears the issue window of destination. Only the per-destination
// budget is cleared; per-IP windows keep counting.
func (l *RecoveryLimiter) ResetIssue(ctx context.Context, destination string) error {
	if l == nil || destination == "" {
		return nil
	}
	if err := l.counter.Reset(ctx, l.issueDestinationKey(destination)); err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
	}
	return nil
}

func (l *RecoveryLimiter) hit(ctx context.Context, key string, w rate.Window) error {
	err := l.counter.Hit(ctx, key, w)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRecoveryRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
	}
}

func (l *RecoveryLimiter) issueDestinationKey(destination string) string {
	return l.config.KeyPrefix + ":i:" + destination
}

func (l *RecoveryLimiter) issueIPKey(ip string) string {
	return l.config.KeyPrefix + ":iip:" + ip
}

func (l *RecoveryLimiter) confirmTicketKey(ticket string) string {
	return l.config.KeyPrefix + ":c:" + ticket
}

func (l *RecoveryLimiter) confirmIPKey(ip string) string {
	return l.config.KeyPrefix + ":cip:" + ip
}
