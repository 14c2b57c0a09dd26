package goForwarder

import (
	"context"
	"sync"

	"github.com/MrEthical07/goForwarder/internal/rate"
	"github.com/MrEthical07/goForwarder/store"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Engine is the forwarder. Build one with [New]; all methods are safe for
// concurrent use.
type Engine struct {
	config   Config
	registry *permissionRegistry
	gate     authorizationGate
	delegate *ownershipDelegate
	locks    *accountLocks
	limiter  *rate.Limiter

	quarantineMu sync.RWMutex
	quarantined  map[common.Address]string

	store     store.Store
	ownsStore bool

	audit   *auditDispatcher
	metrics *Metrics
	logger  *zap.Logger
}

// Close drains the audit dispatcher and releases a store the engine opened
// itself. Stores passed through WithStore are left to the caller.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownsStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters and
// latency histograms. It is safe on a nil Engine.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Administrator returns the only address allowed to mutate permissions.
func (e *Engine) Administrator() common.Address {
	if e == nil {
		return common.Address{}
	}
	return e.config.Administrator
}

// TokenAddress returns the ledger this forwarder owns.
func (e *Engine) TokenAddress() common.Address {
	if e == nil || e.delegate == nil {
		return common.Address{}
	}
	return e.delegate.tokenAddress()
}

// VenueAddress returns the liquidity venue used by [Engine.GuardedSwap].
func (e *Engine) VenueAddress() common.Address {
	if e == nil || e.delegate == nil {
		return common.Address{}
	}
	return e.delegate.venueAddress()
}

// Flags lists the registered flag names in bit order.
func (e *Engine) Flags() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.flags()
}

func (e *Engine) ready() error {
	if e == nil || e.registry == nil || e.delegate == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks that the permission store answers.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.registry.get(ctx, common.Address{}); err != nil {
		return err
	}
	return nil
}
