package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNonceBackend indicates the nonce backend is unreachable.
	ErrNonceBackend = errors.New("nonce backend unavailable")
)

// NonceStore claims single-use keys.
type NonceStore interface {
	// Claim records key for ttl and reports whether this call was the first
	// to do so.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisNonceStore is a NonceStore backed by Redis SET NX.
type RedisNonceStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisNonceStore(redisClient redis.UniversalClient, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = "fwn"
	}
	return &RedisNonceStore{redis: redisClient, prefix: prefix}
}

func (s *RedisNonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.prefix+":"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNonceBackend, err)
	}
	return ok, nil
}

// MemoryNonceStore is an in-process NonceStore. Expired keys are swept
// lazily on Claim.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryNonceStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
	if _, taken := s.entries[key]; taken {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of unexpired claims held.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
