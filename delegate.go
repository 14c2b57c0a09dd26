package goForwarder

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ownershipDelegate is the forwarder's face towards the ledger and the venue.
// Every outbound call is bounded by the configured call timeout.
type ownershipDelegate struct {
	asset   Asset
	venue   Venue
	token   common.Address
	venueAt common.Address
	proxy   common.Address

	callTimeout time.Duration
	breaker     *gobreaker.CircuitBreaker
	metrics     *Metrics
	logger      *zap.Logger
}

func newOwnershipDelegate(cfg Config, asset Asset, venue Venue, metrics *Metrics, logger *zap.Logger) *ownershipDelegate {
	d := &ownershipDelegate{
		asset:       asset,
		venue:       venue,
		token:       cfg.TokenAddress,
		venueAt:     cfg.VenueAddress,
		proxy:       cfg.ProxyAddress,
		callTimeout: cfg.Forwarding.CallTimeout,
		metrics:     metrics,
		logger:      logger,
	}
	if cfg.Breaker.Enabled {
		d.breaker = newVenueBreaker(cfg.Breaker, metrics, logger)
	}
	return d
}

func newVenueBreaker(cfg BreakerConfig, metrics *Metrics, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "venue",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up is not a venue failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if to == gobreaker.StateOpen {
				metrics.Inc(MetricBreakerOpen)
			}
		},
	})
}

func (d *ownershipDelegate) tokenAddress() common.Address { return d.token }

func (d *ownershipDelegate) venueAddress() common.Address { return d.venueAt }

// forwardSetExemption asks the ledger to set account's fee exemption.
func (d *ownershipDelegate) forwardSetExemption(ctx context.Context, account common.Address, exempt bool) error {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	err := d.asset.SetFeeExempt(ctx, account, exempt)
	d.metrics.Observe(MetricForwardLatency, time.Since(start))
	if err != nil {
		d.metrics.Inc(MetricForwardFailed)
		return fmt.Errorf("%w: set fee exemption: %w", ErrExternalCallFailed, err)
	}
	return nil
}

func (d *ownershipDelegate) isFeeExempt(ctx context.Context, account common.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	exempt, err := d.asset.IsFeeExempt(ctx, account)
	if err != nil {
		return false, fmt.Errorf("%w: read fee exemption: %w", ErrExternalCallFailed, err)
	}
	return exempt, nil
}

// ownership reads the ledger's owner and compares it with the proxy address.
func (d *ownershipDelegate) ownership(ctx context.Context) (OwnershipStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	owner, err := d.asset.Owner(ctx)
	if err != nil {
		return OwnershipStatus{}, fmt.Errorf("%w: read owner: %w", ErrExternalCallFailed, err)
	}
	return OwnershipStatus{
		Owner:     owner,
		Forwarder: d.proxy,
		Delegated: owner == d.proxy,
	}, nil
}

// verifyOwnership fails with ErrPreconditionFailed unless the forwarder owns
// the ledger.
func (d *ownershipDelegate) verifyOwnership(ctx context.Context) error {
	status, err := d.ownership(ctx)
	if err != nil {
		return err
	}
	if !status.Delegated {
		return fmt.Errorf("%w: ledger owner is %s", ErrPreconditionFailed, status.Owner.Hex())
	}
	return nil
}

// venueOpen reports whether the breaker currently rejects venue calls.
func (d *ownershipDelegate) venueOpen() bool {
	return d.breaker != nil && d.breaker.State() == gobreaker.StateOpen
}

// swap runs the venue leg once. It is never retried.
func (d *ownershipDelegate) swap(ctx context.Context, recipient common.Address, value *big.Int) error {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if d.breaker == nil {
		err = d.venue.Swap(ctx, recipient, value)
	} else {
		_, err = d.breaker.Execute(func() (interface{}, error) {
			return nil, d.venue.Swap(ctx, recipient, value)
		})
	}
	d.metrics.Observe(MetricSwapLatency, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: venue swap: %w", ErrExternalCallFailed, err)
	}
	return nil
}
