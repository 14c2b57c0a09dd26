package goForwarder

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	auditEventPermissionModified          = "permission_modified"
	auditEventPermissionDenied            = "permission_denied"
	auditEventSwapDirect                  = "swap_direct"
	auditEventSwapElevated                = "swap_elevated"
	auditEventSwapFailed                  = "swap_failed"
	auditEventSwapUnauthorized            = "swap_unauthorized"
	auditEventSwapRateLimited             = "swap_rate_limited"
	auditEventElevationRestoreFailed      = "elevation_restore_failed"
	auditEventAccountReconciled           = "account_reconciled"
	auditEventOwnershipPreconditionFailed = "ownership_precondition_failed"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized      AuditErrorCode = "unauthorized"
	auditErrPrecondition      AuditErrorCode = "precondition_failed"
	auditErrExternal          AuditErrorCode = "external_call_failed"
	auditErrInvariant         AuditErrorCode = "state_invariant_violation"
	auditErrQuarantined       AuditErrorCode = "account_quarantined"
	auditErrInvalidValue      AuditErrorCode = "invalid_value"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrReconcileMismatch AuditErrorCode = "reconcile_mismatch"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	caller common.Address,
	account common.Address,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Caller:    addressOrEmpty(caller),
		Account:   addressOrEmpty(account),
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func addressOrEmpty(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

// auditErrorCode checks the most specific kinds first: a restore failure is
// joined with the venue error that triggered it.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStateInvariantViolation):
		return auditErrInvariant
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrPreconditionFailed):
		return auditErrPrecondition
	case errors.Is(err, ErrAccountQuarantined):
		return auditErrQuarantined
	case errors.Is(err, ErrInvalidValue):
		return auditErrInvalidValue
	case errors.Is(err, ErrSwapRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrReconcileMismatch):
		return auditErrReconcileMismatch
	case errors.Is(err, ErrExternalCallFailed):
		return auditErrExternal
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
