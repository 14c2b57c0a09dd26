// Package limiters provides the login failure limiter used by operator login.
//
// [LoginFailureLimiter] counts bad signatures per address in a fixed window and
// reports the address as locked once the threshold is reached. It is nil-safe:
// calling any method on a nil receiver is a no-op.
//
// # What this package must NOT do
//
//   - Import goForwarder or any sibling internal package.
//   - Make policy decisions beyond counting. The caller decides consequences.
package limiters
