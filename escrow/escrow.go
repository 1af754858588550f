// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package escrow implements the source and destination escrow instances of a
// hashed-timelock swap. An instance holds no state of its own: every call is
// gated by the caller, the block time and the Immutables the caller presents,
// which must derive the instance's own address.
package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/payload"
)

// Variant selects the source or destination escrow template
type Variant uint8

const (
	// Src escrows hold the maker's funds on the source chain
	Src Variant = iota
	// Dst escrows hold the taker's funds on the destination chain
	Dst
)

func (v Variant) String() string {
	switch v {
	case Src:
		return "src"
	case Dst:
		return "dst"
	default:
		return "unknown"
	}
}

// Config is fixed per escrow template. Instances of one template share it,
// and it is committed to by the template's init code hash.
type Config struct {
	// RescueDelay is the number of seconds after deployment before the
	// taker may rescue leftover funds
	RescueDelay uint32
	// AccessToken gates the public withdraw and cancel paths
	AccessToken common.Address
	// NativeToken is the ledger token the safety deposit is paid in
	NativeToken common.Address
}

// InitCodeHash identifies the template of variant v configured with c. It
// stands in for the hash of an instance's creation code when deriving
// instance addresses.
func (c Config) InitCodeHash(v Variant) common.Hash {
	var delay [4]byte
	binary.BigEndian.PutUint32(delay[:], c.RescueDelay)
	return htlc.Keccak256(
		[]byte("htlc/escrow/"+v.String()),
		delay[:],
		c.AccessToken[:],
		c.NativeToken[:],
	)
}

// Deployment locates one escrow instance
type Deployment struct {
	Address      common.Address
	Factory      common.Address
	InitCodeHash common.Hash
}

// Escrow is the surface shared by both variants
type Escrow interface {
	Address() common.Address
	Variant() Variant
	Withdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error
	PublicWithdraw(caller common.Address, secret [htlc.SecretLen]byte, imm *htlc.Immutables) error
	Cancel(caller common.Address, imm *htlc.Immutables) error
	RescueFunds(caller, token common.Address, amount *uint256.Int, imm *htlc.Immutables) error
}

// base holds what both variants share: identity checks, transfers out of the
// instance, and the rescue path.
type base struct {
	deployment Deployment
	config     Config
	host       htlc.Host
	log        *zap.Logger
}

func newBase(d Deployment, cfg Config, host htlc.Host, logger *zap.Logger, v Variant) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		deployment: d,
		config:     cfg,
		host:       host,
		log: logger.With(
			zap.Stringer("escrow", d.Address),
			zap.Stringer("variant", v),
		),
	}
}

// Address returns the address of the instance
func (b *base) Address() common.Address {
	return b.deployment.Address
}

// Config returns the template configuration
func (b *base) Config() Config {
	return b.config
}

// call runs fn as one atomic host call and logs its outcome
func (b *base) call(op string, fn func(tx htlc.Tx) error) error {
	if err := b.host.Execute(fn); err != nil {
		b.log.Debug("escrow call failed",
			zap.String("op", op),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	b.log.Info("escrow call succeeded", zap.String("op", op))
	return nil
}

func (b *base) validate(imm *htlc.Immutables) error {
	return ValidateImmutables(b.deployment.Factory, b.deployment.InitCodeHash, b.deployment.Address, imm)
}

// transferOut moves amount of token held by the instance to to
func (b *base) transferOut(tx htlc.Tx, token, to common.Address, amount *uint256.Int) error {
	return tx.Transfer(token, b.deployment.Address, to, amount)
}

// payDeposit pays the safety deposit of imm in native token to caller
func (b *base) payDeposit(tx htlc.Tx, caller common.Address, imm *htlc.Immutables) error {
	return b.transferOut(tx, b.config.NativeToken, caller, imm.SafetyDeposit)
}

// settle moves the principal to recipient, pays the deposit to caller and
// emits p
func (b *base) settle(tx htlc.Tx, caller, recipient common.Address, imm *htlc.Immutables, p payload.Payload) error {
	if err := b.transferOut(tx, imm.Token, recipient, imm.Amount); err != nil {
		return err
	}
	if err := b.payDeposit(tx, caller, imm); err != nil {
		return err
	}
	tx.Emit(payload.NewEvent(b.deployment.Address, p))
	return nil
}

// RescueFunds lets the taker sweep amount of any token held by the instance
// once the rescue delay has elapsed since deployment.
func (b *base) RescueFunds(caller, token common.Address, amount *uint256.Int, imm *htlc.Immutables) error {
	return b.call("rescue funds", func(tx htlc.Tx) error {
		if err := OnlyTaker(caller, imm); err != nil {
			return err
		}
		if err := b.validate(imm); err != nil {
			return err
		}
		if err := OnlyAfter(tx.Now(), imm.Timelocks.RescueStart(b.config.RescueDelay)); err != nil {
			return err
		}
		if err := b.transferOut(tx, token, caller, amount); err != nil {
			return err
		}
		tx.Emit(payload.NewEvent(b.deployment.Address, &payload.FundsRescued{
			Token:  token,
			Amount: htlc.AmountOrZero(amount),
		}))
		return nil
	})
}
