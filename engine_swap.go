package goForwarder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/MrEthical07/goForwarder/internal/rate"
	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardedSwap runs the venue swap for caller with value wei.
//
// A caller that already holds EXTERNAL_PERMISSION swaps directly. The
// configured liquidity pool swaps inside an elevation bracket: it is exempted
// for the duration of the venue call and restored afterwards, whether or not
// the call succeeded. Anyone else gets ErrUnauthorized with no state change.
// The result does not reveal which path ran.
//
// Eligibility is decided before the swap budget is charged, so rejected
// callers never consume it.
func (e *Engine) GuardedSwap(ctx context.Context, caller common.Address, value *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, _ = ensureRequestID(ctx)

	if value == nil || value.Sign() <= 0 {
		return ErrInvalidValue
	}

	if e.config.LiquidityPool != (common.Address{}) && caller == e.config.LiquidityPool {
		return e.swapAsPool(ctx, caller, value)
	}

	mask, err := e.registry.get(ctx, caller)
	if err != nil {
		return err
	}
	if !mask.Contains(permission.ExternalPermission) {
		e.metricInc(MetricSwapUnauthorized)
		e.logger.Warn("swap rejected",
			zap.String("caller", caller.Hex()),
			zap.String("request_id", RequestIDFromContext(ctx)),
		)
		e.emitAudit(ctx, auditEventSwapUnauthorized, false, caller, caller, ErrUnauthorized, nil)
		return ErrUnauthorized
	}

	if err := e.allowSwap(ctx, caller); err != nil {
		return err
	}
	return e.swapDirect(ctx, caller, value)
}

// swapAsPool reads the pool's mask and runs whichever path it selects under
// the pool's account lock. A second pool swap arriving while a bracket is open
// waits for the restore instead of seeing the transient exemption.
func (e *Engine) swapAsPool(ctx context.Context, pool common.Address, value *big.Int) error {
	unlock := e.locks.lock(pool)
	defer unlock()

	mask, err := e.registry.get(ctx, pool)
	if err != nil {
		return err
	}

	if err := e.allowSwap(ctx, pool); err != nil {
		return err
	}

	if mask.Contains(permission.ExternalPermission) {
		return e.swapDirect(ctx, pool, value)
	}
	return e.swapElevated(ctx, pool, value)
}

func (e *Engine) allowSwap(ctx context.Context, caller common.Address) error {
	if e.limiter == nil {
		return nil
	}
	err := e.limiter.Allow(ctx, strings.ToLower(caller.Hex()))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricSwapRateLimited)
		e.emitAudit(ctx, auditEventSwapRateLimited, false, caller, caller, ErrSwapRateLimited, nil)
		return ErrSwapRateLimited
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (e *Engine) swapDirect(ctx context.Context, caller common.Address, value *big.Int) error {
	if err := e.delegate.swap(ctx, caller, value); err != nil {
		e.swapFailed(ctx, caller, value, err)
		return err
	}

	e.metricInc(MetricSwapDirect)
	e.emitAudit(ctx, auditEventSwapDirect, true, caller, caller, nil, swapMetadata(value))
	return nil
}

// swapElevated checks the preconditions before the bracket is entered, so
// those failures leave nothing to restore. The caller holds the pool's lock.
func (e *Engine) swapElevated(ctx context.Context, pool common.Address, value *big.Int) error {
	if err := e.delegate.verifyOwnership(ctx); err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			e.metricInc(MetricOwnershipPreconditionFailed)
			e.emitAudit(ctx, auditEventOwnershipPreconditionFailed, false, pool, pool, err, nil)
		}
		e.swapFailed(ctx, pool, value, err)
		return err
	}

	if e.delegate.venueOpen() {
		err := fmt.Errorf("%w: venue swap: %w", ErrExternalCallFailed, gobreaker.ErrOpenState)
		e.swapFailed(ctx, pool, value, err)
		return err
	}

	err := e.elevateLocked(ctx, pool, permission.ExternalPermission, func(ctx context.Context) error {
		return e.delegate.swap(ctx, pool, value)
	})
	if err != nil {
		e.swapFailed(ctx, pool, value, err)
		return err
	}

	e.metricInc(MetricSwapElevated)
	e.emitAudit(ctx, auditEventSwapElevated, true, pool, pool, nil, swapMetadata(value))
	return nil
}

func (e *Engine) swapFailed(ctx context.Context, caller common.Address, value *big.Int, err error) {
	e.metricInc(MetricSwapFailed)
	e.logger.Warn("swap failed",
		zap.String("caller", caller.Hex()),
		zap.String("value", value.String()),
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.Error(err),
	)
	e.emitAudit(ctx, auditEventSwapFailed, false, caller, caller, err, swapMetadata(value))
}

func swapMetadata(value *big.Int) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"value": value.String()}
	}
}
