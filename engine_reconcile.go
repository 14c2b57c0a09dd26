package goForwarder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// VerifyOwnership reads the ledger's owner. The status is returned even when
// the forwarder is not the owner, together with ErrPreconditionFailed.
func (e *Engine) VerifyOwnership(ctx context.Context) (OwnershipStatus, error) {
	if err := e.ready(); err != nil {
		return OwnershipStatus{}, err
	}
	status, err := e.delegate.ownership(ctx)
	if err != nil {
		return OwnershipStatus{}, err
	}
	if !status.Delegated {
		return status, fmt.Errorf("%w: ledger owner is %s", ErrPreconditionFailed, status.Owner.Hex())
	}
	return status, nil
}

// IsFeeExempt reads account's exemption flag from the ledger itself.
func (e *Engine) IsFeeExempt(ctx context.Context, account common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.delegate.isFeeExempt(ctx, account)
}

// Quarantined reports whether account is blocked awaiting reconciliation.
func (e *Engine) Quarantined(ctx context.Context, account common.Address) (string, bool, error) {
	if err := e.ready(); err != nil {
		return "", false, err
	}
	e.quarantineMu.RLock()
	reason, ok := e.quarantined[account]
	e.quarantineMu.RUnlock()
	if ok {
		return reason, true, nil
	}
	return e.registry.quarantined(ctx, account)
}

// Reconcile pushes the registry's EXTERNAL_PERMISSION state for account to
// the ledger, reads it back, and on a match releases any quarantine left by a
// failed restore. Only the administrator may call it.
func (e *Engine) Reconcile(ctx context.Context, caller common.Address, account common.Address) (ReconcileResult, error) {
	if err := e.ready(); err != nil {
		return ReconcileResult{}, err
	}
	ctx, _ = ensureRequestID(ctx)

	if err := e.gate.authorize(caller); err != nil {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, caller, account, err, func() map[string]string {
			return map[string]string{"operation": "reconcile"}
		})
		return ReconcileResult{}, err
	}

	unlock := e.locks.lock(account)
	defer unlock()

	result := ReconcileResult{Account: account}
	_, wasQuarantined, err := e.registry.quarantined(ctx, account)
	if err != nil {
		return result, err
	}
	e.quarantineMu.RLock()
	_, inMemory := e.quarantined[account]
	e.quarantineMu.RUnlock()
	result.WasQuarantined = wasQuarantined || inMemory

	fail := func(err error) (ReconcileResult, error) {
		e.logger.Warn("reconcile failed",
			zap.String("account", account.Hex()),
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventAccountReconciled, false, caller, account, err, nil)
		return result, err
	}

	mask, err := e.registry.get(ctx, account)
	if err != nil {
		return fail(err)
	}
	want := mask.Contains(permission.ExternalPermission)

	if err := e.delegate.verifyOwnership(ctx); err != nil {
		return fail(err)
	}
	if err := e.delegate.forwardSetExemption(ctx, account, want); err != nil {
		return fail(err)
	}
	got, err := e.delegate.isFeeExempt(ctx, account)
	if err != nil {
		return fail(err)
	}
	if got != want {
		return fail(fmt.Errorf("%w: ledger reports exempt=%t, registry wants %t", ErrReconcileMismatch, got, want))
	}
	result.Exempt = got

	if err := e.registry.release(ctx, account); err != nil {
		return fail(err)
	}
	e.quarantineMu.Lock()
	delete(e.quarantined, account)
	e.quarantineMu.Unlock()

	e.metricInc(MetricAccountReconciled)
	e.logger.Info("account reconciled",
		zap.String("account", account.Hex()),
		zap.Bool("exempt", got),
		zap.Bool("was_quarantined", result.WasQuarantined),
		zap.String("request_id", RequestIDFromContext(ctx)),
	)
	e.emitAudit(ctx, auditEventAccountReconciled, true, caller, account, nil, func() map[string]string {
		return map[string]string{
			"exempt":          strconv.FormatBool(got),
			"was_quarantined": strconv.FormatBool(result.WasQuarantined),
		}
	})
	return result, nil
}
