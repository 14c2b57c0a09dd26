// Package rate provides the Redis-backed fixed-window counter used to cap
// guarded swaps per caller.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "<prefix>:swap:<id>".
//
// # What this package must NOT do
//
//   - Decide who is rate limited (the engine chooses the identifier).
//   - Be imported outside the goForwarder module.
package rate
