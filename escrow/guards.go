// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/htlc"
)

// BalanceReader reports token balances. htlc.Tx satisfies it.
type BalanceReader interface {
	BalanceOf(token, holder common.Address) *uint256.Int
}

// OnlyTaker fails unless caller is the taker of imm
func OnlyTaker(caller common.Address, imm *htlc.Immutables) error {
	if imm == nil {
		return fmt.Errorf("%w: nil immutables", htlc.ErrInvalidImmutables)
	}
	if caller != imm.Taker {
		return fmt.Errorf("%w: %s is not taker %s", htlc.ErrInvalidCaller, caller, imm.Taker)
	}
	return nil
}

// OnlyAccessTokenHolder fails unless caller holds a non-zero balance of
// accessToken
func OnlyAccessTokenHolder(balances BalanceReader, accessToken, caller common.Address) error {
	bal := balances.BalanceOf(accessToken, caller)
	if bal == nil || bal.IsZero() {
		return fmt.Errorf("%w: %s holds no access token", htlc.ErrInvalidCaller, caller)
	}
	return nil
}

// OnlyAfter fails iff now < start
func OnlyAfter(now, start uint64) error {
	if now < start {
		return fmt.Errorf("%w: %d is before %d", htlc.ErrInvalidTime, now, start)
	}
	return nil
}

// OnlyBefore fails iff now >= stop
func OnlyBefore(now, stop uint64) error {
	if now >= stop {
		return fmt.Errorf("%w: %d is not before %d", htlc.ErrInvalidTime, now, stop)
	}
	return nil
}

// OnlyValidSecret fails unless keccak256(secret) equals the hashlock of imm
func OnlyValidSecret(secret [htlc.SecretLen]byte, imm *htlc.Immutables) error {
	if htlc.HashSecret(secret) != imm.Hashlock {
		return htlc.ErrInvalidSecret
	}
	return nil
}

// ValidateImmutables fails unless imm derives the address self when deployed
// by factory from the template identified by initCodeHash.
func ValidateImmutables(factory common.Address, initCodeHash common.Hash, self common.Address, imm *htlc.Immutables) error {
	if imm == nil {
		return fmt.Errorf("%w: nil immutables", htlc.ErrInvalidImmutables)
	}
	if got := htlc.ComputeAddress(factory, imm.Hash(), initCodeHash); got != self {
		return fmt.Errorf("%w: derive %s, instance is %s", htlc.ErrInvalidImmutables, got, self)
	}
	return nil
}
