package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const maxApplyAttempts = 8

// RedisStore persists masks in Redis under a configurable key prefix.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore]. An empty prefix defaults to "fw".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fw"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) permKey(account common.Address) string {
	return s.prefix + ":perm:" + accountKey(account)
}

func (s *RedisStore) quarantineKey(account common.Address) string {
	return s.prefix + ":quarantine:" + accountKey(account)
}

func (s *RedisStore) Load(ctx context.Context, account common.Address) (permission.Mask64, error) {
	raw, err := s.redis.Get(ctx, s.permKey(account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	mask, err := permission.DecodeMask(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return mask, nil
}

// Apply reads, merges and writes the mask inside a WATCH transaction.
// Concurrent writers on the same key cause a bounded number of re-reads.
func (s *RedisStore) Apply(ctx context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error) {
	key := s.permKey(account)

	var next permission.Mask64
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		old, err := permission.DecodeMask(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		next = old.Apply(grant, revoke)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == 0 {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, permission.EncodeMask(next), 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return next, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrCorrupt):
			return 0, err
		default:
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return 0, fmt.Errorf("%w: apply contention on %s", ErrUnavailable, key)
}

func (s *RedisStore) Quarantine(ctx context.Context, account common.Address, reason string) error {
	if err := s.redis.Set(ctx, s.quarantineKey(account), reason, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) QuarantineReason(ctx context.Context, account common.Address) (string, bool, error) {
	reason, err := s.redis.Get(ctx, s.quarantineKey(account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reason, true, nil
}

func (s *RedisStore) Release(ctx context.Context, account common.Address) error {
	if err := s.redis.Del(ctx, s.quarantineKey(account)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (s *RedisStore) Close() error { return nil }
