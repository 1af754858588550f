// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/payload"
)

var _ Escrow = (*SrcEscrow)(nil)

// SrcEscrow holds the maker's funds on the source chain. The taker unlocks
// them with the secret; after expiry they are refunded to the maker.
type SrcEscrow struct {
	base
}

// NewSrc binds a source instance to its deployment
func NewSrc(d Deployment, cfg Config, host htlc.Host, logger *zap.Logger) *SrcEscrow {
	return &SrcEscrow{base: newBase(d, cfg, host, logger, Src)}
}

func (*SrcEscrow) Variant() Variant { return Src }

// Withdraw releases the principal to the taker
func (e *SrcEscrow) Withdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error {
	if imm == nil {
		return fmt.Errorf("withdraw: %w", htlc.ErrInvalidImmutables)
	}
	return e.WithdrawTo(caller, secret, imm.Taker, imm)
}

// WithdrawTo releases the principal to target. Only the taker may call it,
// within [SrcWithdrawal, SrcCancellation).
func (e *SrcEscrow) WithdrawTo(caller common.Address, secret [htlc.SecretLen]byte, target common.Address, imm *htlc.Immutables) error {
	return e.call("withdraw", func(tx htlc.Tx) error {
		if err := OnlyTaker(caller, imm); err != nil {
			return err
		}
		return e.withdrawTo(tx, caller, secret, target, imm, htlc.SrcWithdrawal)
	})
}

// PublicWithdraw releases the principal to the taker. Any access token
// holder may call it, within [SrcPublicWithdrawal, SrcCancellation).
func (e *SrcEscrow) PublicWithdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error {
	if imm == nil {
		return fmt.Errorf("public withdraw: %w", htlc.ErrInvalidImmutables)
	}
	return e.call("public withdraw", func(tx htlc.Tx) error {
		if err := OnlyAccessTokenHolder(tx, e.config.AccessToken, caller); err != nil {
			return err
		}
		return e.withdrawTo(tx, caller, secret, imm.Taker, imm, htlc.SrcPublicWithdrawal)
	})
}

// Cancel refunds the principal to the maker. Only the taker may call it, from
// SrcCancellation on.
func (e *SrcEscrow) Cancel(caller common.Address, imm *htlc.Immutables) error {
	return e.call("cancel", func(tx htlc.Tx) error {
		if err := OnlyTaker(caller, imm); err != nil {
			return err
		}
		return e.cancel(tx, caller, imm, htlc.SrcCancellation)
	})
}

// PublicCancel refunds the principal to the maker. Any access token holder
// may call it, from SrcPublicCancellation on.
func (e *SrcEscrow) PublicCancel(caller common.Address, imm *htlc.Immutables) error {
	return e.call("public cancel", func(tx htlc.Tx) error {
		if err := OnlyAccessTokenHolder(tx, e.config.AccessToken, caller); err != nil {
			return err
		}
		return e.cancel(tx, caller, imm, htlc.SrcPublicCancellation)
	})
}

func (e *SrcEscrow) withdrawTo(
	tx htlc.Tx,
	caller common.Address,
	secret [htlc.SecretLen]byte,
	target common.Address,
	imm *htlc.Immutables,
	opens htlc.Stage,
) error {
	if err := e.validate(imm); err != nil {
		return err
	}
	now := tx.Now()
	if err := OnlyAfter(now, imm.Timelocks.Get(opens)); err != nil {
		return err
	}
	if err := OnlyBefore(now, imm.Timelocks.Get(htlc.SrcCancellation)); err != nil {
		return err
	}
	if err := OnlyValidSecret(secret, imm); err != nil {
		return err
	}
	return e.settle(tx, caller, target, imm, payload.NewWithdrawal(secret, target))
}

func (e *SrcEscrow) cancel(tx htlc.Tx, caller common.Address, imm *htlc.Immutables, opens htlc.Stage) error {
	if err := e.validate(imm); err != nil {
		return err
	}
	if err := OnlyAfter(tx.Now(), imm.Timelocks.Get(opens)); err != nil {
		return err
	}
	return e.settle(tx, caller, imm.Maker, imm, &payload.Cancelled{Refunded: imm.Maker})
}
