package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Asset is the token ledger contract.
type Asset struct {
	address  common.Address
	backend  Backend
	contract *bind.BoundContract
	signer   *Signer
}

// NewAsset binds the ledger at address. signer may be nil for read-only use.
func NewAsset(address common.Address, backend Backend, signer *Signer) *Asset {
	return &Asset{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, assetABI, backend, backend, backend),
		signer:   signer,
	}
}

// Address returns the ledger's contract address.
func (a *Asset) Address() common.Address {
	return a.address
}

// Owner returns the ledger's current owner.
func (a *Asset) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodOwner); err != nil {
		return common.Address{}, fmt.Errorf("call %s: %w", methodOwner, err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// IsFeeExempt reads the ledger's exemption flag for account.
func (a *Asset) IsFeeExempt(ctx context.Context, account common.Address) (bool, error) {
	var out []interface{}
	if err := a.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodIsFeeExempt, account); err != nil {
		return false, fmt.Errorf("call %s: %w", methodIsFeeExempt, err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// SetFeeExempt sends setIsFeeExempt and waits for it to be mined. The ledger
// only accepts it from its owner.
func (a *Asset) SetFeeExempt(ctx context.Context, account common.Address, exempt bool) error {
	tx, err := a.signer.send(ctx, a.backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return a.contract.Transact(opts, methodSetFeeExempt, account, exempt)
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", methodSetFeeExempt, err)
	}
	return sendAndWait(ctx, a.backend, tx)
}
