package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisNonceStoreClaimOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisNonceStore(rdb, "")
	ctx := context.Background()

	first, err := s.Claim(ctx, "sig-1", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v (%v)", first, err)
	}
	second, err := s.Claim(ctx, "sig-1", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second claim to lose, got %v (%v)", second, err)
	}
	if !mr.Exists("fwn:sig-1") {
		t.Fatal("expected prefixed key in redis")
	}

	mr.FastForward(2 * time.Minute)
	again, err := s.Claim(ctx, "sig-1", time.Minute)
	if err != nil || !again {
		t.Fatalf("expected claim after expiry to win, got %v (%v)", again, err)
	}
}

func TestRedisNonceStoreBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisNonceStore(rdb, "x")
	mr.Close()

	if _, err := s.Claim(context.Background(), "k", time.Minute); !errors.Is(err, ErrNonceBackend) {
		t.Fatalf("expected ErrNonceBackend, got %v", err)
	}
}

func TestMemoryNonceStoreExpiry(t *testing.T) {
	s := NewMemoryNonceStore()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := s.Claim(ctx, "a", time.Minute); !ok {
		t.Fatal("expected first claim to win")
	}
	if ok, _ := s.Claim(ctx, "a", time.Minute); ok {
		t.Fatal("expected replay to lose")
	}
	now = now.Add(time.Minute)
	if ok, _ := s.Claim(ctx, "a", time.Minute); !ok {
		t.Fatal("expected claim after expiry to win")
	}
	if s.Len() != 1 {
		t.Fatalf("expected expired entry to be swept, len=%d", s.Len())
	}
}

func TestMemoryNonceStoreConcurrentClaims(t *testing.T) {
	s := NewMemoryNonceStore()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Claim(context.Background(), "same", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}
