// Package middleware resolves the calling account from a bearer caller token.
//
// # Guards
//
//   - [Guard] parses the Authorization header and stores the caller address in
//     the request context.
//   - [RequireCaller] additionally restricts the route to one address.
//   - [GinGuard] is the gin adapter used by the operator API.
//
// # What this package must NOT do
//
//   - Create tokens. Issuance belongs to the login handler.
//   - Make permission decisions. Those belong to the forwarding engine; the
//     guard only establishes who is calling.
package middleware
