// Package store persists the forwarder's permission registry: one [permission.Mask64]
// per account plus the set of accounts quarantined after a failed restore.
//
// # Backends
//
//   - [MemoryStore]: process-local map, used by tests and single-shot tools.
//   - [RedisStore]: one key per account; Apply runs under WATCH/MULTI so the
//     merge is atomic even with several writers.
//   - [SQLiteStore]: database/sql over modernc.org/sqlite; Apply runs in a
//     transaction.
//
// # Key layout (Redis)
//
//	<prefix>:perm:<lowercase hex address>        8-byte big-endian mask
//	<prefix>:quarantine:<lowercase hex address>  reason string
//
// # What this package must NOT do
//
//   - Decide who may mutate a mask (that is the engine's authorization gate).
//   - Talk to the chain.
package store
