// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Ledger is an in-memory multi-token balance sheet. It is not safe for
// concurrent use on its own; Chain serialises access.
type Ledger struct {
	balances map[common.Address]map[common.Address]*uint256.Int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// BalanceOf returns a copy of holder's balance of token
func (l *Ledger) BalanceOf(token, holder common.Address) *uint256.Int {
	if bal, ok := l.balances[token][holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// set overwrites holder's balance and returns the previous value
func (l *Ledger) set(token, holder common.Address, amount *uint256.Int) *uint256.Int {
	prev := l.BalanceOf(token, holder)
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[token] = holders
	}
	if amount.IsZero() {
		delete(holders, holder)
	} else {
		holders[holder] = amount.Clone()
	}
	return prev
}

// credit adds amount to holder's balance
func (l *Ledger) credit(token, holder common.Address, amount *uint256.Int) (*uint256.Int, error) {
	next, overflow := new(uint256.Int).AddOverflow(l.BalanceOf(token, holder), amount)
	if overflow {
		return nil, fmt.Errorf("%w: %s of %s", ErrBalanceOverflow, holder, token)
	}
	return l.set(token, holder, next), nil
}

// debit subtracts amount from holder's balance
func (l *Ledger) debit(token, holder common.Address, amount *uint256.Int) (*uint256.Int, error) {
	bal := l.BalanceOf(token, holder)
	if bal.Lt(amount) {
		return nil, fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, holder, bal.Dec(), token, amount.Dec())
	}
	return l.set(token, holder, new(uint256.Int).Sub(bal, amount)), nil
}

// Supply returns the sum of all balances of token
func (l *Ledger) Supply(token common.Address) *uint256.Int {
	total := new(uint256.Int)
	for _, bal := range l.balances[token] {
		total.Add(total, bal)
	}
	return total
}
