package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, threshold int) (*LoginFailureLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLoginFailureLimiter(rdb, LoginFailureConfig{Threshold: threshold, Window: time.Minute}), mr
}

func TestLoginFailureLimiterLocksAtThreshold(t *testing.T) {
	l, _ := newLimiter(t, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		reached, err := l.RecordFailure(ctx, "0xabc")
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if reached != (i == 3) {
			t.Fatalf("attempt %d: reached=%v", i, reached)
		}
	}
	locked, err := l.Locked(ctx, "0xabc")
	if err != nil || !locked {
		t.Fatalf("expected locked, got %v (%v)", locked, err)
	}
	other, _ := l.Locked(ctx, "0xdef")
	if other {
		t.Fatal("lock leaked to another address")
	}
}

func TestLoginFailureLimiterWindowExpires(t *testing.T) {
	l, mr := newLimiter(t, 1)
	ctx := context.Background()

	if _, err := l.RecordFailure(ctx, "0xabc"); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	locked, err := l.Locked(ctx, "0xabc")
	if err != nil || locked {
		t.Fatalf("expected window to expire, got %v (%v)", locked, err)
	}
}

func TestLoginFailureLimiterReset(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()

	_, _ = l.RecordFailure(ctx, "0xabc")
	if err := l.Reset(ctx, "0xabc"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := l.Failures(ctx, "0xabc")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 failures, got %d (%v)", n, err)
	}
}

func TestLoginFailureLimiterNilSafe(t *testing.T) {
	var l *LoginFailureLimiter
	ctx := context.Background()
	if reached, err := l.RecordFailure(ctx, "0xabc"); reached || err != nil {
		t.Fatalf("nil limiter recorded failure: %v %v", reached, err)
	}
	if locked, err := l.Locked(ctx, "0xabc"); locked || err != nil {
		t.Fatalf("nil limiter locked: %v %v", locked, err)
	}
	if NewLoginFailureLimiter(nil, LoginFailureConfig{Threshold: 3}) != nil {
		t.Fatal("expected nil limiter without redis")
	}
}

func TestLoginFailureLimiterRedisDown(t *testing.T) {
	l, mr := newLimiter(t, 2)
	mr.Close()

	_, err := l.RecordFailure(context.Background(), "0xabc")
	if !errors.Is(err, ErrLoginLimiterUnavailable) {
		t.Fatalf("expected ErrLoginLimiterUnavailable, got %v", err)
	}
}
