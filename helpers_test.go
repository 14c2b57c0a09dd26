package goForwarder

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/MrEthical07/goForwarder/store"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"
)

var (
	adminAddr = common.HexToAddress("0x000000000000000000000000000000000000000A")
	proxyAddr = common.HexToAddress("0x00000000000000000000000000000000000000F0")
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000000070")
	venueAddr = common.HexToAddress("0x0000000000000000000000000000000000000072")
	poolAddr  = common.HexToAddress("0x0000000000000000000000000000000000000088")
	bobAddr   = common.HexToAddress("0x00000000000000000000000000000000000000B0")
	carolAddr = common.HexToAddress("0x00000000000000000000000000000000000000C0")

	errLedgerDown = errors.New("ledger down")
	errVenueDown  = errors.New("venue reverted")
)

// fakeLedger keeps the exemption map the way the token contract does: only
// its owner may write it.
type fakeLedger struct {
	mu     sync.Mutex
	owner  common.Address
	exempt map[common.Address]bool
	calls  []ledgerCall

	// failSet fails SetFeeExempt calls whose exempt argument matches.
	failSet map[bool]error
	// failAfterSet applies matching writes and then reports an error, like a
	// transaction mined after its receipt wait timed out.
	failAfterSet map[bool]error
	// failReads fails Owner and IsFeeExempt.
	failReads error
}

type ledgerCall struct {
	account common.Address
	exempt  bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		owner:        proxyAddr,
		exempt:       map[common.Address]bool{},
		failSet:      map[bool]error{},
		failAfterSet: map[bool]error{},
	}
}

func (l *fakeLedger) Owner(context.Context) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads != nil {
		return common.Address{}, l.failReads
	}
	return l.owner, nil
}

func (l *fakeLedger) IsFeeExempt(_ context.Context, account common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failReads != nil {
		return false, l.failReads
	}
	return l.exempt[account], nil
}

func (l *fakeLedger) SetFeeExempt(_ context.Context, account common.Address, exempt bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{account: account, exempt: exempt})
	if err := l.failSet[exempt]; err != nil {
		return err
	}
	if l.owner != proxyAddr {
		return errors.New("Ownable: caller is not the owner")
	}
	l.exempt[account] = exempt
	return l.failAfterSet[exempt]
}

func (l *fakeLedger) isExempt(account common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exempt[account]
}

func (l *fakeLedger) setCalls() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

func (l *fakeLedger) setFailure(exempt bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failSet[exempt] = err
}

func (l *fakeLedger) setFailureAfterApply(exempt bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAfterSet[exempt] = err
}

// fakeVenue records swaps and, when onSwap is set, lets a test observe state
// while the swap is in flight.
type fakeVenue struct {
	mu     sync.Mutex
	swaps  []*big.Int
	err    error
	onSwap func(ctx context.Context, recipient common.Address)
	panic  any
}

func (v *fakeVenue) Swap(ctx context.Context, recipient common.Address, value *big.Int) error {
	v.mu.Lock()
	v.swaps = append(v.swaps, new(big.Int).Set(value))
	err, hook, p := v.err, v.onSwap, v.panic
	v.mu.Unlock()

	if hook != nil {
		hook(ctx, recipient)
	}
	if p != nil {
		panic(p)
	}
	return err
}

func (v *fakeVenue) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.swaps)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Administrator = adminAddr
	cfg.ProxyAddress = proxyAddr
	cfg.TokenAddress = tokenAddr
	cfg.VenueAddress = venueAddr
	cfg.LiquidityPool = poolAddr
	cfg.Forwarding.CallTimeout = time.Second
	cfg.Forwarding.RestoreTimeout = 2 * time.Second
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type testEngine struct {
	*Engine
	ledger *fakeLedger
	venue  *fakeVenue
	store  store.Store
}

func newTestEngine(t testing.TB, mutate func(*Config, *Builder)) *testEngine {
	t.Helper()

	cfg := testConfig()
	ledger := newFakeLedger()
	venue := &fakeVenue{}
	s := store.NewMemoryStore()

	b := New().
		WithAsset(ledger).
		WithVenue(venue).
		WithStore(s).
		WithLogger(zaptest.NewLogger(t))
	if mutate != nil {
		mutate(&cfg, b)
	}
	b.WithConfig(cfg)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	return &testEngine{Engine: engine, ledger: ledger, venue: venue, store: s}
}

func wei(v int64) *big.Int {
	return big.NewInt(v)
}

// failingStore wraps a store and fails the selected operations.
type failingStore struct {
	store.Store

	mu             sync.Mutex
	failApply      func(grant, revoke permission.Mask64) bool
	failLoad       bool
	failQuarantine bool
}

func (s *failingStore) Load(ctx context.Context, account common.Address) (permission.Mask64, error) {
	s.mu.Lock()
	fail := s.failLoad
	s.mu.Unlock()
	if fail {
		return 0, store.ErrUnavailable
	}
	return s.Store.Load(ctx, account)
}

func (s *failingStore) Apply(ctx context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error) {
	s.mu.Lock()
	fail := s.failApply != nil && s.failApply(grant, revoke)
	s.mu.Unlock()
	if fail {
		return 0, store.ErrUnavailable
	}
	return s.Store.Apply(ctx, account, grant, revoke)
}

func (s *failingStore) Quarantine(ctx context.Context, account common.Address, reason string) error {
	s.mu.Lock()
	fail := s.failQuarantine
	s.mu.Unlock()
	if fail {
		return store.ErrUnavailable
	}
	return s.Store.Quarantine(ctx, account, reason)
}
