package goForwarder

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not the administrator, or
	// when a guarded swap caller holds no exemption and is not eligible for
	// transient elevation. Nothing is mutated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPreconditionFailed is returned when the ledger's owner is not the
	// forwarder's own address, so owner-only forwarded calls cannot succeed.
	ErrPreconditionFailed = errors.New("ownership precondition failed")
	// ErrExternalCallFailed wraps failures reported by the ledger or the venue,
	// including timeouts and an open venue circuit breaker.
	ErrExternalCallFailed = errors.New("external call failed")
	// ErrStateInvariantViolation is returned when an elevation bracket could not
	// restore the recorded pre-elevation state. The account is quarantined.
	ErrStateInvariantViolation = errors.New("state invariant violation")
	// ErrAccountQuarantined is returned for mutations of an account that is
	// awaiting reconciliation after a state invariant violation.
	ErrAccountQuarantined = errors.New("account quarantined")
	// ErrInvalidValue is returned for a nil or non-positive swap value.
	ErrInvalidValue = errors.New("invalid swap value")
	// ErrStoreUnavailable wraps permission store failures.
	ErrStoreUnavailable = errors.New("permission store unavailable")
	// ErrSwapRateLimited is returned when a caller exceeded its swap budget.
	ErrSwapRateLimited = errors.New("swap rate limited")
	// ErrReconcileMismatch is returned when the ledger still disagrees with the
	// registry after a reconcile write.
	ErrReconcileMismatch = errors.New("ledger state does not match registry after reconcile")
	// ErrUnknownFlag is returned when a flag name is not in the catalog.
	ErrUnknownFlag = errors.New("unknown permission flag")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
