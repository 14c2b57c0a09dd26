package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goForwarder/internal/limiters"
	"github.com/MrEthical07/goForwarder/internal/stores"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const messagePrefix = "goForwarder login "

var (
	ErrMalformedSignature = errors.New("malformed login signature")
	ErrSignatureMismatch  = errors.New("login signature does not match address")
	ErrLoginExpired       = errors.New("login timestamp outside window")
	ErrLoginReplayed      = errors.New("login signature already used")
	ErrLoginLocked        = errors.New("login temporarily locked for address")
	ErrBackendUnavailable = errors.New("login backend unavailable")
)

// LoginMessage is the text an operator signs to log in as address at ts.
func LoginMessage(address common.Address, ts int64) string {
	return messagePrefix + address.Hex() + " " + strconv.FormatInt(ts, 10)
}

// Request is a signed login attempt.
type Request struct {
	Address   common.Address
	Timestamp int64
	Signature []byte
}

// Verifier checks login requests. Accepted signatures are claimed in a
// NonceStore so each can be used once.
type Verifier struct {
	window   time.Duration
	nonces   stores.NonceStore
	failures *limiters.LoginFailureLimiter
	now      func() time.Time
}

// NewVerifier returns a Verifier accepting timestamps within window of now.
// failures may be nil.
func NewVerifier(window time.Duration, nonces stores.NonceStore, failures *limiters.LoginFailureLimiter) *Verifier {
	if nonces == nil {
		nonces = stores.NewMemoryNonceStore()
	}
	return &Verifier{
		window:   window,
		nonces:   nonces,
		failures: failures,
		now:      time.Now,
	}
}

// Verify returns the address proven by req.
func (v *Verifier) Verify(ctx context.Context, req Request) (common.Address, error) {
	if req.Address == (common.Address{}) {
		return common.Address{}, ErrMalformedSignature
	}
	who := req.Address.Hex()

	locked, err := v.failures.Locked(ctx, who)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if locked {
		return common.Address{}, ErrLoginLocked
	}

	skew := v.now().Sub(time.Unix(req.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window {
		return common.Address{}, ErrLoginExpired
	}

	signer, err := RecoverSigner(LoginMessage(req.Address, req.Timestamp), req.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if signer != req.Address {
		if _, ferr := v.failures.RecordFailure(ctx, who); ferr != nil {
			return common.Address{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, ferr)
		}
		return common.Address{}, ErrSignatureMismatch
	}

	// The window is symmetric around now, so a signature stays acceptable for
	// at most twice the window.
	fresh, err := v.nonces.Claim(ctx, signatureKey(req.Signature), 2*v.window)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !fresh {
		return common.Address{}, ErrLoginReplayed
	}

	if err := v.failures.Reset(ctx, who); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return signer, nil
}

// RecoverSigner returns the address that produced sig over the personal
// message msg. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(msg string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrMalformedSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// signatureKey keys the nonce by the signature's r||s so the two equivalent
// recovery id encodings cannot be replayed against each other.
func signatureKey(sig []byte) string {
	return hex.EncodeToString(crypto.Keccak256(sig[:crypto.RecoveryIDOffset]))
}
