package goForwarder

//go:generate mockgen -source=types.go -destination=internal/mocks/mock_collaborators.go -package=mocks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is the token ledger whose ownership is delegated to the forwarder.
// SetFeeExempt succeeds only when the ledger's owner is the forwarder's address.
type Asset interface {
	Owner(ctx context.Context) (common.Address, error)
	IsFeeExempt(ctx context.Context, account common.Address) (bool, error)
	SetFeeExempt(ctx context.Context, account common.Address, exempt bool) error
}

// Venue is the liquidity venue used by the guarded swap. Swap is an opaque
// fallible operation; it may have partially moved funds when it fails.
type Venue interface {
	Swap(ctx context.Context, recipient common.Address, value *big.Int) error
}

// OwnershipStatus reports who owns the ledger relative to the forwarder.
type OwnershipStatus struct {
	Owner     common.Address
	Forwarder common.Address
	Delegated bool
}

// ReconcileResult describes the outcome of [Engine.Reconcile].
type ReconcileResult struct {
	Account        common.Address
	Exempt         bool
	WasQuarantined bool
}
