package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrReverted is returned when a mined transaction has a failed receipt.
	ErrReverted = errors.New("transaction reverted")
	// ErrNoSigner is returned when a write is attempted without a signing key.
	ErrNoSigner = errors.New("no signer configured")
)

// Backend is what the bindings need from an RPC client. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Signer produces transaction options for the forwarder's own address.
// Sends through one Signer are serialized and numbered from a local nonce so
// concurrent writers never race for the same pending nonce.
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	address common.Address

	mu         sync.Mutex
	nonce      uint64
	nonceKnown bool
}

// NewSigner parses a hex private key (with or without 0x prefix).
func NewSigner(hexKey string, chainID *big.Int) (*Signer, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		chainID: new(big.Int).Set(chainID),
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address is the account that signs forwarded transactions; the ledger owner
// must be this address.
func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if s == nil {
		return nil, ErrNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// send assigns the next nonce and broadcasts the transaction built by build.
// A failed send forgets the local nonce so the next one is re-read from the
// pending state.
func (s *Signer) send(
	ctx context.Context,
	backend bind.ContractBackend,
	build func(*bind.TransactOpts) (*types.Transaction, error),
) (*types.Transaction, error) {
	if s == nil {
		return nil, ErrNoSigner
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nonceKnown {
		n, err := backend.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, fmt.Errorf("pending nonce: %w", err)
		}
		s.nonce, s.nonceKnown = n, true
	}

	opts, err := s.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Nonce = new(big.Int).SetUint64(s.nonce)

	tx, err := build(opts)
	if err != nil {
		s.nonceKnown = false
		return nil, err
	}
	s.nonce++
	return tx, nil
}

func sendAndWait(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	return checkReceipt(receipt)
}

func checkReceipt(receipt *types.Receipt) error {
	if receipt == nil {
		return errors.New("missing receipt")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, receipt.TxHash.Hex())
	}
	return nil
}
