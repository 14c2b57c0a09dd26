// Package jwt issues and verifies short-lived caller tokens. A token's subject
// is the account address the caller proved control of at login.
package jwt
