// Package httpapi exposes the forwarding engine as a JSON operator API on gin.
//
// Every /v1 route except POST /v1/session requires a caller token; the
// caller address resolved from it is the caller passed to the engine.
package httpapi
