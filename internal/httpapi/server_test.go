package httpapi

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/internal/identity"
	"github.com/MrEthical07/goForwarder/internal/stores"
	"github.com/MrEthical07/goForwarder/jwt"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	proxyAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	venueAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	bobAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type memLedger struct {
	mu     sync.Mutex
	owner  common.Address
	exempt map[common.Address]bool
}

func (l *memLedger) Owner(context.Context) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner, nil
}

func (l *memLedger) IsFeeExempt(_ context.Context, account common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exempt[account], nil
}

func (l *memLedger) SetFeeExempt(_ context.Context, account common.Address, exempt bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exempt[account] = exempt
	return nil
}

type countingVenue struct {
	mu    sync.Mutex
	swaps []*big.Int
}

func (v *countingVenue) Swap(_ context.Context, _ common.Address, value *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.swaps = append(v.swaps, new(big.Int).Set(value))
	return nil
}

func (v *countingVenue) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.swaps)
}

type account struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return account{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

type fixture struct {
	server *Server
	ledger *memLedger
	venue  *countingVenue
	admin  account
	pool   account
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	admin := newAccount(t)
	pool := newAccount(t)
	ledger := &memLedger{owner: proxyAddr, exempt: map[common.Address]bool{}}
	venue := &countingVenue{}

	cfg := goForwarder.DefaultConfig()
	cfg.Administrator = admin.addr
	cfg.ProxyAddress = proxyAddr
	cfg.TokenAddress = tokenAddr
	cfg.VenueAddress = venueAddr
	cfg.LiquidityPool = pool.addr

	engine, err := goForwarder.New().
		WithConfig(cfg).
		WithAsset(ledger).
		WithVenue(venue).
		WithLogger(zaptest.NewLogger(t)).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tokens, err := jwt.NewManager(jwt.Config{AccessTTL: time.Minute, SigningMethod: jwt.MethodEd25519, PrivateKey: priv, PublicKey: pub})
	require.NoError(t, err)

	opts := Options{
		Forwarder: engine,
		Tokens:    tokens,
		Verifier:  identity.NewVerifier(time.Minute, stores.NewMemoryNonceStore(), nil),
		Logger:    zaptest.NewLogger(t),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &fixture{server: New(opts), ledger: ledger, venue: venue, admin: admin, pool: pool}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, a account) string {
	t.Helper()
	ts := time.Now().Unix()
	sig, err := crypto.Sign(accounts.TextHash([]byte(identity.LoginMessage(a.addr, ts))), a.key)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/v1/session", "", map[string]any{
		"address":   a.addr.Hex(),
		"timestamp": ts,
		"signature": hexutil.Encode(sig),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, a.addr.Hex(), resp.Address)
	assert.Equal(t, int64(60), resp.ExpiresIn)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/v1/token", "/v1/venue", "/v1/permissions/" + bobAddr.Hex()} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAddressQueries(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t, newAccount(t))

	rec := f.do(t, http.MethodGet, "/v1/token", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tokenAddr.Hex(), decode(t, rec)["address"])

	rec = f.do(t, http.MethodGet, "/v1/venue", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, venueAddr.Hex(), decode(t, rec)["address"])
}

func TestLoginRejectsReplayAndBadSignature(t *testing.T) {
	f := newFixture(t, nil)
	a := newAccount(t)
	ts := time.Now().Unix()
	sig, err := crypto.Sign(accounts.TextHash([]byte(identity.LoginMessage(a.addr, ts))), a.key)
	require.NoError(t, err)
	body := map[string]any{"address": a.addr.Hex(), "timestamp": ts, "signature": hexutil.Encode(sig)}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/session", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/session", "", body).Code)

	body["address"] = bobAddr.Hex()
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/v1/session", "", body).Code)

	body["signature"] = "zz"
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/session", "", body).Code)
}

func TestModifyPermissionRequiresAdministrator(t *testing.T) {
	f := newFixture(t, nil)
	stranger := f.login(t, newAccount(t))

	rec := f.do(t, http.MethodPost, "/v1/permissions/"+bobAddr.Hex(), stranger, map[string]any{"grant": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/permissions/"+bobAddr.Hex(), stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["mask"])
}

func TestAdministratorGrantsByFlagNameAndSets(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.login(t, f.admin)
	path := "/v1/permissions/" + bobAddr.Hex()

	rec := f.do(t, http.MethodPost, path, admin, map[string]any{"grant_flags": []string{"EXTERNAL_PERMISSION"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["mask"])
	assert.Equal(t, []any{"EXTERNAL_PERMISSION"}, body["flags"])

	rec = f.do(t, http.MethodPut, path, admin, map[string]any{"mask": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["mask"])

	rec = f.do(t, http.MethodPut, path, admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, path, admin, map[string]any{"grant_flags": []string{"NOPE"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/permissions/not-an-address", admin, map[string]any{"grant": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwapPaths(t *testing.T) {
	f := newFixture(t, nil)
	pool := f.login(t, f.pool)
	stranger := f.login(t, newAccount(t))

	rec := f.do(t, http.MethodPost, "/v1/swap", pool, map[string]any{"value": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.venue.count())

	rec = f.do(t, http.MethodGet, "/v1/exemption/"+f.pool.addr.Hex(), pool, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["exempt"])

	rec = f.do(t, http.MethodPost, "/v1/swap", stranger, map[string]any{"value": "0x10"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/swap", pool, map[string]any{"value": "lots"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/swap", pool, map[string]any{"value": "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, f.venue.count())
}

func TestOwnershipPrecondition(t *testing.T) {
	f := newFixture(t, nil)
	token := f.login(t, f.admin)

	rec := f.do(t, http.MethodGet, "/v1/ownership", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["delegated"])

	f.ledger.mu.Lock()
	f.ledger.owner = bobAddr
	f.ledger.mu.Unlock()

	rec = f.do(t, http.MethodGet, "/v1/ownership", token, nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestReconcileRequiresAdministrator(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.login(t, f.admin)
	stranger := f.login(t, newAccount(t))

	rec := f.do(t, http.MethodPost, "/v1/reconcile/"+bobAddr.Hex(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/reconcile/"+bobAddr.Hex(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["was_quarantined"])
}

func TestAPIRateLimitPerCaller(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.RequestsPerSecond = 0.001
		o.Burst = 2
	})
	token := f.login(t, newAccount(t))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/token", token, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/token", token, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/v1/token", token, nil).Code)

	other := f.login(t, newAccount(t))
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/token", other, nil).Code)
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/token", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestClientLimiterSweep(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Now()
	l.allow("a", now)
	l.allow("b", now.Add(11*time.Minute))
	l.sweep(now.Add(11 * time.Minute))
	assert.Len(t, l.buckets, 1)
	assert.Nil(t, newClientLimiter(0, 5))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{goForwarder.ErrUnauthorized, http.StatusForbidden},
		{goForwarder.ErrAccountQuarantined, http.StatusLocked},
		{goForwarder.ErrPreconditionFailed, http.StatusPreconditionFailed},
		{fmt.Errorf("%w: venue", goForwarder.ErrExternalCallFailed), http.StatusBadGateway},
		{errors.Join(goForwarder.ErrExternalCallFailed, goForwarder.ErrStateInvariantViolation), http.StatusInternalServerError},
		{goForwarder.ErrSwapRateLimited, http.StatusTooManyRequests},
		{goForwarder.ErrInvalidValue, http.StatusBadRequest},
		{goForwarder.ErrUnknownFlag, http.StatusBadRequest},
		{goForwarder.ErrReconcileMismatch, http.StatusConflict},
		{goForwarder.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{identity.ErrLoginLocked, http.StatusTooManyRequests},
		{identity.ErrLoginReplayed, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
