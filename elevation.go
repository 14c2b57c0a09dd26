package goForwarder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// accountLocks hands out one mutex per account. Entries are reference counted
// and removed once the last holder unlocks.
type accountLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[common.Address]*accountLock)}
}

func (l *accountLocks) lock(account common.Address) (unlock func()) {
	l.mu.Lock()
	al, ok := l.locks[account]
	if !ok {
		al = &accountLock{}
		l.locks[account] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			al.mu.Unlock()

			l.mu.Lock()
			al.refs--
			if al.refs == 0 {
				delete(l.locks, account)
			}
			l.mu.Unlock()
		})
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// withElevated grants flag to account for the duration of op and restores the
// prior mask, on the registry and on the ledger, on every exit path. The
// account lock is held from the pre-read until restoration finished.
//
// A failed restore quarantines the account and is reported as
// ErrStateInvariantViolation joined with op's own error.
func (e *Engine) withElevated(
	ctx context.Context,
	account common.Address,
	flag permission.Mask64,
	op func(context.Context) error,
) error {
	unlock := e.locks.lock(account)
	defer unlock()
	return e.elevateLocked(ctx, account, flag, op)
}

// elevateLocked is withElevated for a caller already holding the account
// lock.
func (e *Engine) elevateLocked(
	ctx context.Context,
	account common.Address,
	flag permission.Mask64,
	op func(context.Context) error,
) (err error) {
	if err := e.checkQuarantine(ctx, account); err != nil {
		return err
	}

	prior, err := e.registry.get(ctx, account)
	if err != nil {
		return err
	}

	if _, err := e.registry.modify(ctx, account, flag, 0); err != nil {
		return err
	}

	// A failed grant may still have landed (a mined transaction whose receipt
	// wait timed out), so the ledger is restored as well as the registry.
	if fwdErr := e.delegate.forwardSetExemption(ctx, account, true); fwdErr != nil {
		if restoreErr := e.restore(ctx, account, prior); restoreErr != nil {
			return errors.Join(fwdErr, restoreErr)
		}
		return fwdErr
	}

	e.logger.Debug("account elevated",
		zap.String("account", account.Hex()),
		zap.Uint64("prior", uint64(prior)),
		zap.String("request_id", RequestIDFromContext(ctx)),
	)

	defer func() {
		r := recover()
		if restoreErr := e.restore(ctx, account, prior); restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
		if r != nil {
			panic(r)
		}
	}()

	return op(ctx)
}

// restoreContext detaches from the caller's cancellation so a caller giving
// up cannot leave an account elevated.
func (e *Engine) restoreContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.config.Forwarding.RestoreTimeout)
}

func (e *Engine) restore(ctx context.Context, account common.Address, prior permission.Mask64) error {
	rctx, cancel := e.restoreContext(ctx)
	defer cancel()

	var errs []error
	if _, err := e.registry.set(rctx, account, prior); err != nil {
		errs = append(errs, err)
	}
	if err := e.delegate.forwardSetExemption(rctx, account, prior.Contains(permission.ExternalPermission)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return e.invariantViolation(rctx, account, prior, errors.Join(errs...))
}

// invariantViolation quarantines account and builds the error reported to the
// caller. The quarantine is always recorded in memory; persisting it may fail
// when the store itself is what broke.
func (e *Engine) invariantViolation(ctx context.Context, account common.Address, prior permission.Mask64, cause error) error {
	reason := fmt.Sprintf("restore to mask %d failed: %v", uint64(prior), cause)

	e.quarantineMu.Lock()
	e.quarantined[account] = reason
	e.quarantineMu.Unlock()

	persistErr := e.registry.quarantine(ctx, account, reason)

	e.metricInc(MetricElevationRestoreFailed)
	fields := []zap.Field{
		zap.String("account", account.Hex()),
		zap.Uint64("prior", uint64(prior)),
		zap.String("request_id", RequestIDFromContext(ctx)),
		zap.Error(cause),
	}
	if persistErr != nil {
		fields = append(fields, zap.NamedError("quarantine_persist_error", persistErr))
	}
	e.logger.Error("elevation restore failed, account quarantined", fields...)
	e.emitAudit(ctx, auditEventElevationRestoreFailed, false, common.Address{}, account, cause, func() map[string]string {
		return map[string]string{"prior_mask": fmt.Sprintf("%d", uint64(prior))}
	})

	return fmt.Errorf("%w: account %s: %w", ErrStateInvariantViolation, account.Hex(), cause)
}

// checkQuarantine rejects mutations of an account awaiting reconciliation.
func (e *Engine) checkQuarantine(ctx context.Context, account common.Address) error {
	e.quarantineMu.RLock()
	reason, ok := e.quarantined[account]
	e.quarantineMu.RUnlock()
	if ok {
		return fmt.Errorf("%w: %s", ErrAccountQuarantined, reason)
	}

	reason, ok, err := e.registry.quarantined(ctx, account)
	if err != nil {
		return err
	}
	if ok {
		e.quarantineMu.Lock()
		e.quarantined[account] = reason
		e.quarantineMu.Unlock()
		return fmt.Errorf("%w: %s", ErrAccountQuarantined, reason)
	}
	return nil
}
