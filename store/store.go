package store

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("store unavailable")
	// ErrCorrupt is returned when a persisted mask cannot be decoded.
	ErrCorrupt = errors.New("store value corrupt")
)

// Store is the persistence contract used by the permission registry.
type Store interface {
	// Load returns the mask for account, or zero if the account has no entry.
	Load(ctx context.Context, account common.Address) (permission.Mask64, error)
	// Apply stores (old &^ revoke) | grant atomically and returns the new mask.
	Apply(ctx context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error)
	// Quarantine marks account as blocked for mutations until Release.
	Quarantine(ctx context.Context, account common.Address, reason string) error
	// QuarantineReason reports whether account is quarantined and why.
	QuarantineReason(ctx context.Context, account common.Address) (string, bool, error)
	// Release clears a quarantine. Releasing an account that is not quarantined is a no-op.
	Release(ctx context.Context, account common.Address) error
	Close() error
}

func accountKey(account common.Address) string {
	return strings.ToLower(account.Hex())
}
