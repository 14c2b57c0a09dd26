package goForwarder

import (
	"context"
	"strconv"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ModifyPermission applies (old &^ revoke) | grant to account's mask and
// returns the stored value. Only the administrator may call it; any other
// caller gets ErrUnauthorized and nothing changes. A bit present in both
// grant and revoke ends up set.
func (e *Engine) ModifyPermission(
	ctx context.Context,
	caller common.Address,
	account common.Address,
	grant permission.Mask64,
	revoke permission.Mask64,
) (permission.Mask64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ctx, _ = ensureRequestID(ctx)

	if err := e.gate.authorize(caller); err != nil {
		e.metricInc(MetricPermissionDenied)
		e.logger.Warn("permission change rejected",
			zap.String("caller", caller.Hex()),
			zap.String("account", account.Hex()),
			zap.String("request_id", RequestIDFromContext(ctx)),
		)
		e.emitAudit(ctx, auditEventPermissionDenied, false, caller, account, err, nil)
		return 0, err
	}

	unlock := e.locks.lock(account)
	defer unlock()

	if err := e.checkQuarantine(ctx, account); err != nil {
		e.emitAudit(ctx, auditEventPermissionModified, false, caller, account, err, nil)
		return 0, err
	}

	next, err := e.registry.modify(ctx, account, grant, revoke)
	if err != nil {
		e.logger.Error("permission change failed",
			zap.String("account", account.Hex()),
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(err),
		)
		e.emitAudit(ctx, auditEventPermissionModified, false, caller, account, err, nil)
		return 0, err
	}

	e.metricInc(MetricPermissionModified)
	e.logger.Info("permission modified",
		zap.String("account", account.Hex()),
		zap.Uint64("grant", uint64(grant)),
		zap.Uint64("revoke", uint64(revoke)),
		zap.Uint64("mask", uint64(next)),
		zap.String("request_id", RequestIDFromContext(ctx)),
	)
	e.emitAudit(ctx, auditEventPermissionModified, true, caller, account, nil, func() map[string]string {
		return map[string]string{
			"grant":  strconv.FormatUint(uint64(grant), 10),
			"revoke": strconv.FormatUint(uint64(revoke), 10),
			"mask":   strconv.FormatUint(uint64(next), 10),
		}
	})
	return next, nil
}

// SetPermission makes account's mask exactly desired. It is
// ModifyPermission(desired, ^desired) and carries the same authorization.
func (e *Engine) SetPermission(
	ctx context.Context,
	caller common.Address,
	account common.Address,
	desired permission.Mask64,
) (permission.Mask64, error) {
	return e.ModifyPermission(ctx, caller, account, desired, ^desired)
}

// GetPermission returns account's mask; accounts never touched read as zero.
func (e *Engine) GetPermission(ctx context.Context, account common.Address) (permission.Mask64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.registry.get(ctx, account)
}

// FlagMask resolves flag names to a mask. Unknown names wrap ErrUnknownFlag.
func (e *Engine) FlagMask(names ...string) (permission.Mask64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.registry.mask(names...)
}

// FlagNames lists the registered names of the bits set in m.
func (e *Engine) FlagNames(m permission.Mask64) []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.catalog.Names(m)
}
