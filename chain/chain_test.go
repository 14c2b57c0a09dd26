package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers eth_call from canned ABI outputs keyed by method name.
// Only CallContract is implemented; anything else panics through the nil
// embedded interface.
type fakeBackend struct {
	Backend
	outputs map[string][]byte
	calls   []ethereum.CallMsg
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	for name, out := range f.outputs {
		if method, ok := assetABI.Methods[name]; ok && string(method.ID) == string(msg.Data[:4]) {
			return out, nil
		}
		if method, ok := routerABI.Methods[name]; ok && string(method.ID) == string(msg.Data[:4]) {
			return out, nil
		}
	}
	return nil, ethereum.NotFound
}

func TestABIMethodSignatures(t *testing.T) {
	assert.Equal(t, "owner()", assetABI.Methods[methodOwner].Sig)
	assert.Equal(t, "getIsFeeExempt(address)", assetABI.Methods[methodIsFeeExempt].Sig)
	assert.Equal(t, "setIsFeeExempt(address,bool)", assetABI.Methods[methodSetFeeExempt].Sig)
	assert.Equal(t, "WETH()", routerABI.Methods[methodWETH].Sig)
	assert.Equal(t,
		"swapExactETHForTokensSupportingFeeOnTransferTokens(uint256,address[],address,uint256)",
		routerABI.Methods[methodSwapExactETH].Sig,
	)
	assert.True(t, routerABI.Methods[methodSwapExactETH].IsPayable())
}

func TestSetFeeExemptPacksArguments(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := assetABI.Pack(methodSetFeeExempt, account, true)
	require.NoError(t, err)
	require.Len(t, data, 4+32+32)

	args, err := assetABI.Methods[methodSetFeeExempt].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, account, args[0])
	assert.Equal(t, true, args[1])
}

func TestAssetOwnerAndExemptionReads(t *testing.T) {
	owner := common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	ownerOut, err := assetABI.Methods[methodOwner].Outputs.Pack(owner)
	require.NoError(t, err)
	exemptOut, err := assetABI.Methods[methodIsFeeExempt].Outputs.Pack(true)
	require.NoError(t, err)

	backend := &fakeBackend{outputs: map[string][]byte{
		methodOwner:       ownerOut,
		methodIsFeeExempt: exemptOut,
	}}
	assetAddr := common.HexToAddress("0x0000000000000000000000000000000000000100")
	asset := NewAsset(assetAddr, backend, nil)

	got, err := asset.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	exempt, err := asset.IsFeeExempt(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, exempt)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, assetAddr, *backend.calls[0].To)
}

func TestAssetWriteWithoutSigner(t *testing.T) {
	asset := NewAsset(common.Address{1}, &fakeBackend{}, nil)
	err := asset.SetFeeExempt(context.Background(), common.Address{2}, true)
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestVenueRejectsNonPositiveValue(t *testing.T) {
	venue := NewVenue(common.Address{1}, common.Address{2}, &fakeBackend{}, nil, 0)
	assert.Error(t, venue.Swap(context.Background(), common.Address{3}, big.NewInt(0)))
	assert.Error(t, venue.Swap(context.Background(), common.Address{3}, nil))
	assert.Equal(t, defaultSwapDeadline, venue.deadline)
}

func TestVenueCachesWrappedNative(t *testing.T) {
	weth := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	out, err := routerABI.Methods[methodWETH].Outputs.Pack(weth)
	require.NoError(t, err)

	backend := &fakeBackend{outputs: map[string][]byte{methodWETH: out}}
	venue := NewVenue(common.Address{1}, common.Address{2}, backend, nil, 0)

	for i := 0; i < 3; i++ {
		got, err := venue.wrappedNative(context.Background())
		require.NoError(t, err)
		assert.Equal(t, weth, got)
	}
	assert.Len(t, backend.calls, 1)
}

func TestNewSigner(t *testing.T) {
	key := "0x0000000000000000000000000000000000000000000000000000000000000001"
	s, err := NewSigner(key, big.NewInt(56))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"), s.Address())

	opts, err := s.transactOpts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.Address(), opts.From)

	_, err = NewSigner(key, nil)
	assert.Error(t, err)
	_, err = NewSigner("zz", big.NewInt(1))
	assert.Error(t, err)
}

func TestCheckReceipt(t *testing.T) {
	assert.NoError(t, checkReceipt(&types.Receipt{Status: types.ReceiptStatusSuccessful}))
	assert.ErrorIs(t, checkReceipt(&types.Receipt{Status: types.ReceiptStatusFailed}), ErrReverted)
	assert.Error(t, checkReceipt(nil))
}

// nonceBackend serves PendingNonceAt from a fixed starting nonce.
type nonceBackend struct {
	Backend
	start uint64
	reads atomic.Int32
}

func (n *nonceBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	n.reads.Add(1)
	return n.start, nil
}

func TestSignerSendAssignsDistinctNonces(t *testing.T) {
	s, err := NewSigner("0x0000000000000000000000000000000000000000000000000000000000000001", big.NewInt(56))
	require.NoError(t, err)
	backend := &nonceBackend{start: 5}

	const writers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		nonces = map[uint64]bool{}
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.send(context.Background(), backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
				return types.NewTx(&types.LegacyTx{Nonce: opts.Nonce.Uint64()}), nil
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			nonces[tx.Nonce()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, nonces, writers)
	for n := uint64(5); n < 5+writers; n++ {
		assert.True(t, nonces[n], "nonce %d not used", n)
	}
	assert.Equal(t, int32(1), backend.reads.Load())
}

func TestSignerSendFailureRereadsNonce(t *testing.T) {
	s, err := NewSigner("0x0000000000000000000000000000000000000000000000000000000000000001", big.NewInt(56))
	require.NoError(t, err)
	backend := &nonceBackend{start: 9}

	_, err = s.send(context.Background(), backend, func(*bind.TransactOpts) (*types.Transaction, error) {
		return nil, errors.New("replacement transaction underpriced")
	})
	require.Error(t, err)

	tx, err := s.send(context.Background(), backend, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return types.NewTx(&types.LegacyTx{Nonce: opts.Nonce.Uint64()}), nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tx.Nonce())
	assert.Equal(t, int32(2), backend.reads.Load())
}

func TestSignerSendWithoutSigner(t *testing.T) {
	var s *Signer
	_, err := s.send(context.Background(), &nonceBackend{}, nil)
	assert.ErrorIs(t, err, ErrNoSigner)
}
