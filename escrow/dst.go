// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/payload"
)

var _ Escrow = (*DstEscrow)(nil)

// DstEscrow holds the taker's funds on the destination chain. Revealing the
// secret releases them to the maker; after expiry they return to the taker.
type DstEscrow struct {
	base
}

// NewDst binds a destination instance to its deployment
func NewDst(d Deployment, cfg Config, host htlc.Host, logger *zap.Logger) *DstEscrow {
	return &DstEscrow{base: newBase(d, cfg, host, logger, Dst)}
}

func (*DstEscrow) Variant() Variant { return Dst }

// Withdraw releases the principal to the maker. Only the taker may call it,
// within [DstWithdrawal, DstCancellation).
func (e *DstEscrow) Withdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error {
	return e.call("withdraw", func(tx htlc.Tx) error {
		if err := OnlyTaker(caller, imm); err != nil {
			return err
		}
		return e.withdraw(tx, caller, secret, imm, htlc.DstWithdrawal)
	})
}

// PublicWithdraw releases the principal to the maker. Any access token
// holder may call it, within [DstPublicWithdrawal, DstCancellation).
func (e *DstEscrow) PublicWithdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error {
	return e.call("public withdraw", func(tx htlc.Tx) error {
		if err := OnlyAccessTokenHolder(tx, e.config.AccessToken, caller); err != nil {
			return err
		}
		return e.withdraw(tx, caller, secret, imm, htlc.DstPublicWithdrawal)
	})
}

// Cancel refunds the principal to the taker. Only the taker may call it,
// from DstCancellation on.
func (e *DstEscrow) Cancel(caller common.Address, imm *htlc.Immutables) error {
	return e.call("cancel", func(tx htlc.Tx) error {
		if err := OnlyTaker(caller, imm); err != nil {
			return err
		}
		if err := e.validate(imm); err != nil {
			return err
		}
		if err := OnlyAfter(tx.Now(), imm.Timelocks.Get(htlc.DstCancellation)); err != nil {
			return err
		}
		return e.settle(tx, caller, imm.Taker, imm, &payload.Cancelled{Refunded: imm.Taker})
	})
}

func (e *DstEscrow) withdraw(tx htlc.Tx, caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables, opens htlc.Stage) error {
	if err := e.validate(imm); err != nil {
		return err
	}
	now := tx.Now()
	if err := OnlyAfter(now, imm.Timelocks.Get(opens)); err != nil {
		return err
	}
	if err := OnlyBefore(now, imm.Timelocks.Get(htlc.DstCancellation)); err != nil {
		return err
	}
	if err := OnlyValidSecret(secret, imm); err != nil {
		return err
	}
	return e.settle(tx, caller, imm.Maker, imm, payload.NewWithdrawal(secret, imm.Maker))
}
