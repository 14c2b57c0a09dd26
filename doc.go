// Package goForwarder implements an ownership-delegating forwarder that sits
// between callers and a fee-bearing token, granting a swap venue a transient
// fee exemption for the duration of a guarded swap.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goForwarder is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (MetricsSnapshot, OwnershipStatus, ReconcileResult). Permission storage lives in the
// store package, the on-chain bindings live in chain, and HTTP transport, caller identity
// and rate limiting live under internal/.
//
// # Elevation contract
//
// Every elevated swap holds a per-account lock, records the account's prior permission
// mask, grants the exemption flag, forwards the exemption to the asset, runs the swap and
// restores both registry and asset to the prior value on every exit path including panics.
// A restore that cannot complete quarantines the account until [Engine.Reconcile] is run
// by the administrator.
//
// # What this package must NOT do
//
//   - Retry external calls. A failed forward or swap is reported, never replayed.
//   - Hold any lock across accounts. Elevations on different accounts never serialize.
//   - Import any sub-package that re-imports goForwarder (no import cycles).
package goForwarder
