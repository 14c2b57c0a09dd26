package store

import (
	"context"
	"sync"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore keeps masks in a process-local map.
type MemoryStore struct {
	mu         sync.RWMutex
	masks      map[common.Address]permission.Mask64
	quarantine map[common.Address]string
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		masks:      make(map[common.Address]permission.Mask64),
		quarantine: make(map[common.Address]string),
	}
}

func (s *MemoryStore) Load(_ context.Context, account common.Address) (permission.Mask64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masks[account], nil
}

func (s *MemoryStore) Apply(_ context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.masks[account].Apply(grant, revoke)
	if next == 0 {
		delete(s.masks, account)
	} else {
		s.masks[account] = next
	}
	return next, nil
}

func (s *MemoryStore) Quarantine(_ context.Context, account common.Address, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quarantine[account] = reason
	return nil
}

func (s *MemoryStore) QuarantineReason(_ context.Context, account common.Address) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reason, ok := s.quarantine[account]
	return reason, ok, nil
}

func (s *MemoryStore) Release(_ context.Context, account common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quarantine, account)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
