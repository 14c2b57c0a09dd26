package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultSwapDeadline = 2 * time.Minute

// Venue is a Uniswap V2 router used to buy the ledger's token with native coin.
type Venue struct {
	address  common.Address
	token    common.Address
	backend  Backend
	contract *bind.BoundContract
	signer   *Signer
	deadline time.Duration

	mu   sync.Mutex
	weth common.Address
}

// NewVenue binds the router at address for swaps into token. A non-positive
// deadline uses two minutes.
func NewVenue(address, token common.Address, backend Backend, signer *Signer, deadline time.Duration) *Venue {
	if deadline <= 0 {
		deadline = defaultSwapDeadline
	}
	return &Venue{
		address:  address,
		token:    token,
		backend:  backend,
		contract: bind.NewBoundContract(address, routerABI, backend, backend, backend),
		signer:   signer,
		deadline: deadline,
	}
}

// Address returns the router's contract address.
func (v *Venue) Address() common.Address {
	return v.address
}

// Swap spends value wei on the token, delivering it to recipient.
func (v *Venue) Swap(ctx context.Context, recipient common.Address, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return errors.New("swap value must be positive")
	}
	weth, err := v.wrappedNative(ctx)
	if err != nil {
		return err
	}

	deadline := big.NewInt(time.Now().Add(v.deadline).Unix())
	path := []common.Address{weth, v.token}
	tx, err := v.signer.send(ctx, v.backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = new(big.Int).Set(value)
		return v.contract.Transact(opts, methodSwapExactETH, big.NewInt(0), path, recipient, deadline)
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", methodSwapExactETH, err)
	}
	return sendAndWait(ctx, v.backend, tx)
}

func (v *Venue) wrappedNative(ctx context.Context) (common.Address, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.weth != (common.Address{}) {
		return v.weth, nil
	}

	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodWETH); err != nil {
		return common.Address{}, fmt.Errorf("call %s: %w", methodWETH, err)
	}
	v.weth = *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return v.weth, nil
}
