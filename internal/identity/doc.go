// Package identity verifies operator logins. A caller proves control of an
// address by signing a timestamped login message with the address key using
// the personal-message (EIP-191) scheme.
package identity
