// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=./htlcmock/host.go -package=htlcmock

package htlc

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Tx is the view of chain state available to one escrow or factory call.
// Every effect made through a Tx is discarded if the call fails.
type Tx interface {
	// Now returns the timestamp of the executing block
	Now() uint64

	// BalanceOf returns holder's balance of token
	BalanceOf(token, holder common.Address) *uint256.Int

	// Transfer moves amount of token from one principal to another and
	// fails on insufficient balance
	Transfer(token, from, to common.Address, amount *uint256.Int) error

	// Emit appends evt to the chain event log
	Emit(evt *Event)

	// Deploy registers contract at addr, failing if addr is occupied
	Deploy(addr common.Address, contract any) error
}

// Host executes calls one at a time, each either fully applied or not at all
type Host interface {
	Execute(fn func(tx Tx) error) error
}
