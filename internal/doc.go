// Package internal holds packages private to goForwarder.
//
// # Sub-packages
//
//   - httpapi: gin operator API over the engine
//   - identity: signed-login verification
//   - limiters: login failure lockout
//   - mocks: gomock doubles for the ledger and venue
//   - rate: Redis fixed-window swap budget
//   - security: configuration posture report
//   - stores: single-use login nonces
//
// # What this package must NOT do
//
//   - Export types that appear in the public goForwarder API.
package internal
