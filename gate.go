package goForwarder

import "github.com/ethereum/go-ethereum/common"

// authorizationGate admits exactly one caller.
type authorizationGate struct {
	administrator common.Address
}

func (g authorizationGate) authorize(caller common.Address) error {
	if caller != g.administrator {
		return ErrUnauthorized
	}
	return nil
}
