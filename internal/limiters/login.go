package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginFailureConfig holds configuration for the login failure limiter.
type LoginFailureConfig struct {
	Prefix    string
	Threshold int
	Window    time.Duration
}

var (
	// ErrLoginLimiterUnavailable indicates the limiter backend is unreachable.
	ErrLoginLimiterUnavailable = errors.New("login limiter backend unavailable")
)

// LoginFailureLimiter tracks failed login signatures per address.
type LoginFailureLimiter struct {
	redis  redis.UniversalClient
	config LoginFailureConfig
}

// NewLoginFailureLimiter returns nil when cfg.Threshold is zero, which turns
// every method into a no-op.
func NewLoginFailureLimiter(redisClient redis.UniversalClient, cfg LoginFailureConfig) *LoginFailureLimiter {
	if cfg.Threshold <= 0 || redisClient == nil {
		return nil
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "fwl"
	}
	return &LoginFailureLimiter{redis: redisClient, config: cfg}
}

func (l *LoginFailureLimiter) key(address string) string {
	return l.config.Prefix + ":login:" + address
}

// RecordFailure increments the failure counter for address and reports
// whether the threshold has been reached.
func (l *LoginFailureLimiter) RecordFailure(ctx context.Context, address string) (bool, error) {
	if l == nil || address == "" {
		return false, nil
	}

	count, err := l.redis.Incr(ctx, l.key(address)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLoginLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(address), l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLoginLimiterUnavailable, err)
		}
	}

	return count >= int64(l.config.Threshold), nil
}

// Locked reports whether address has reached the threshold in the current
// window.
func (l *LoginFailureLimiter) Locked(ctx context.Context, address string) (bool, error) {
	count, err := l.Failures(ctx, address)
	if err != nil || l == nil {
		return false, err
	}
	return count >= l.config.Threshold, nil
}

// Reset clears the failure counter for address.
func (l *LoginFailureLimiter) Reset(ctx context.Context, address string) error {
	if l == nil || address == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(address)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginLimiterUnavailable, err)
	}
	return nil
}

// Failures returns the current failure count for address.
func (l *LoginFailureLimiter) Failures(ctx context.Context, address string) (int, error) {
	if l == nil || address == "" {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.key(address)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLoginLimiterUnavailable, err)
	}
	return int(count), nil
}
