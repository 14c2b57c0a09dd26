// Package stores provides short-lived, single-use records for operator login.
//
// # Design
//
// A [NonceStore] claims a key at most once within its TTL. The Redis
// implementation uses SET NX so concurrent daemons sharing a Redis agree on
// the winner; the memory implementation serves single-process deployments.
//
// # What this package must NOT do
//
//   - Import goForwarder or any sibling internal package.
//   - Store signatures or tokens in plaintext keys. Callers pass digests.
package stores
