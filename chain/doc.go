// Package chain binds the forwarder's external collaborators to EVM contracts
// with go-ethereum: the token ledger ([Asset]) and a Uniswap V2 style router
// ([Venue]).
//
// Writes are signed by a [Signer] holding the key whose address owns the ledger
// and are confirmed with bind.WaitMined. A mined transaction whose receipt status
// is not successful is reported as [ErrReverted]. Nothing in this package
// retries.
package chain
