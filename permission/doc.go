// Package permission provides the 64-bit capability mask used by the forwarder's
// permission registry, the flag catalog that names its bits, and the byte codec
// used by persistent stores.
//
// # Merge rule
//
// Every mutation of a mask goes through [Mask64.Apply]:
//
//	new = (old &^ revoke) | grant
//
// Apply is idempotent and grant wins when the same bit appears in both masks.
// An absolute assignment is expressed as Apply(desired, ^desired).
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Keying masks by
// account lives in the store package and in the goForwarder engine.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the chain.
//   - Import goForwarder, store, or chain.
package permission
