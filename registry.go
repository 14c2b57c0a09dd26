package goForwarder

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/MrEthical07/goForwarder/store"
	"github.com/ethereum/go-ethereum/common"
)

// permissionRegistry owns every permission entry. Only the engine holds one,
// and every mutation goes through modify.
type permissionRegistry struct {
	store   store.Store
	catalog *permission.Registry
}

func newPermissionRegistry(s store.Store, flags []string) (*permissionRegistry, error) {
	catalog := permission.NewRegistry()
	for _, name := range flags {
		if _, err := catalog.Register(name); err != nil {
			return nil, fmt.Errorf("register flag %q: %w", name, err)
		}
	}
	catalog.Freeze()

	return &permissionRegistry{
		store:   s,
		catalog: catalog,
	}, nil
}

// get returns the mask for account; unknown accounts read as zero.
func (r *permissionRegistry) get(ctx context.Context, account common.Address) (permission.Mask64, error) {
	m, err := r.store.Load(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return m, nil
}

// modify stores (old &^ revoke) | grant and returns the stored value.
func (r *permissionRegistry) modify(ctx context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error) {
	m, err := r.store.Apply(ctx, account, grant, revoke)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return m, nil
}

// set makes the entry exactly desired.
func (r *permissionRegistry) set(ctx context.Context, account common.Address, desired permission.Mask64) (permission.Mask64, error) {
	return r.modify(ctx, account, desired, ^desired)
}

func (r *permissionRegistry) quarantine(ctx context.Context, account common.Address, reason string) error {
	if err := r.store.Quarantine(ctx, account, reason); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *permissionRegistry) quarantined(ctx context.Context, account common.Address) (string, bool, error) {
	reason, ok, err := r.store.QuarantineReason(ctx, account)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return reason, ok, nil
}

func (r *permissionRegistry) release(ctx context.Context, account common.Address) error {
	if err := r.store.Release(ctx, account); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *permissionRegistry) mask(names ...string) (permission.Mask64, error) {
	m, err := r.catalog.Mask(names...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnknownFlag, err)
	}
	return m, nil
}

// flags lists every registered flag name in bit order.
func (r *permissionRegistry) flags() []string {
	return r.catalog.Names(^permission.Mask64(0))
}
