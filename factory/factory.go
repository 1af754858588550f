// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package factory deploys escrow instances at addresses derived from their
// Immutables and enforces what must be locked in them at creation.
package factory

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/cache"
	"github.com/luxfi/htlc/escrow"
	"github.com/luxfi/htlc/payload"
)

// DefaultAddressCacheSize bounds the derived address memo
const DefaultAddressCacheSize = 1024

var errNoAddress = errors.New("factory address required")

// Config configures a Factory and the two escrow templates it deploys
type Config struct {
	// Address is the deployer address used in instance address derivation
	Address common.Address
	// NativeToken is the ledger token safety deposits are paid in
	NativeToken common.Address
	// AccessToken gates public escrow paths
	AccessToken common.Address
	// SrcRescueDelay and DstRescueDelay are the per-template rescue delays
	SrcRescueDelay uint32
	DstRescueDelay uint32
	// AddressCacheSize bounds the derived address memo. Zero means default.
	AddressCacheSize int
}

type addressKey struct {
	variant escrow.Variant
	salt    common.Hash
}

// Factory creates escrow instances on one host
type Factory struct {
	address   common.Address
	templates [2]escrow.Config
	initCode  [2]common.Hash
	host      htlc.Host
	log       *zap.Logger
	addresses *cache.LRUCache[addressKey, common.Address]
}

// New creates a factory deploying onto host
func New(cfg *Config, host htlc.Host, logger *zap.Logger) (*Factory, error) {
	if cfg.Address == (common.Address{}) {
		return nil, errNoAddress
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.AddressCacheSize
	if size <= 0 {
		size = DefaultAddressCacheSize
	}
	addresses, err := cache.NewLRUCache[addressKey, common.Address](size)
	if err != nil {
		return nil, err
	}

	f := &Factory{
		address:   cfg.Address,
		host:      host,
		log:       logger.With(zap.Stringer("factory", cfg.Address)),
		addresses: addresses,
	}
	f.templates[escrow.Src] = escrow.Config{
		RescueDelay: cfg.SrcRescueDelay,
		AccessToken: cfg.AccessToken,
		NativeToken: cfg.NativeToken,
	}
	f.templates[escrow.Dst] = escrow.Config{
		RescueDelay: cfg.DstRescueDelay,
		AccessToken: cfg.AccessToken,
		NativeToken: cfg.NativeToken,
	}
	for _, v := range []escrow.Variant{escrow.Src, escrow.Dst} {
		f.initCode[v] = f.templates[v].InitCodeHash(v)
	}
	return f, nil
}

// Address returns the deployer address
func (f *Factory) Address() common.Address {
	return f.address
}

// NativeToken returns the token safety deposits are paid in
func (f *Factory) NativeToken() common.Address {
	return f.templates[escrow.Src].NativeToken
}

// InitCodeHash returns the template identity of variant v
func (f *Factory) InitCodeHash(v escrow.Variant) common.Hash {
	return f.initCode[v]
}

// AddressOfEscrowSrc returns the address a source instance for imm has or
// would have. It creates nothing.
func (f *Factory) AddressOfEscrowSrc(imm *htlc.Immutables) common.Address {
	return f.addressOf(escrow.Src, imm)
}

// AddressOfEscrowDst returns the address a destination instance for imm has
// or would have. It creates nothing.
func (f *Factory) AddressOfEscrowDst(imm *htlc.Immutables) common.Address {
	return f.addressOf(escrow.Dst, imm)
}

func (f *Factory) addressOf(v escrow.Variant, imm *htlc.Immutables) common.Address {
	key := addressKey{variant: v, salt: imm.Hash()}
	// The fetch cannot fail.
	addr, _ := f.addresses.Get(key, func(k addressKey) (common.Address, error) {
		return htlc.ComputeAddress(f.address, k.salt, f.initCode[k.variant]), nil
	}, false)
	return addr
}

// BindSrc returns a handle on the source instance at addr
func (f *Factory) BindSrc(addr common.Address) *escrow.SrcEscrow {
	return escrow.NewSrc(f.deployment(escrow.Src, addr), f.templates[escrow.Src], f.host, f.log)
}

// BindDst returns a handle on the destination instance at addr
func (f *Factory) BindDst(addr common.Address) *escrow.DstEscrow {
	return escrow.NewDst(f.deployment(escrow.Dst, addr), f.templates[escrow.Dst], f.host, f.log)
}

func (f *Factory) deployment(v escrow.Variant, addr common.Address) escrow.Deployment {
	return escrow.Deployment{
		Address:      addr,
		Factory:      f.address,
		InitCodeHash: f.initCode[v],
	}
}

// CreateDstEscrow deploys the destination instance for imm, funded by caller.
//
// nativeValue is the native amount caller attaches. It must equal the safety
// deposit, plus the amount when the escrowed token is the native token. The
// instance's deployment time is stamped into the returned Immutables, and its
// DstCancellation must not fall after srcCancellation.
func (f *Factory) CreateDstEscrow(
	caller common.Address,
	imm *htlc.Immutables,
	srcCancellation uint64,
	nativeValue *uint256.Int,
) (*escrow.DstEscrow, *htlc.Immutables, error) {
	if err := imm.Validate(); err != nil {
		return nil, nil, fmt.Errorf("create dst escrow: %w", err)
	}
	native := f.templates[escrow.Dst].NativeToken

	var (
		stamped *htlc.Immutables
		addr    common.Address
	)
	err := f.host.Execute(func(tx htlc.Tx) error {
		required := htlc.AmountOrZero(imm.SafetyDeposit)
		if imm.Token == native {
			// Both operands fit 128 bits.
			required.Add(required, htlc.AmountOrZero(imm.Amount))
		}
		if nativeValue == nil || !nativeValue.Eq(required) {
			return fmt.Errorf("%w: attached %s, required %s",
				htlc.ErrInsufficientEscrowBalance, htlc.AmountOrZero(nativeValue).Dec(), required.Dec())
		}

		var err error
		stamped, err = imm.WithDeployedAt(tx.Now())
		if err != nil {
			return err
		}
		if deadline := stamped.Timelocks.Get(htlc.DstCancellation); deadline > srcCancellation {
			return fmt.Errorf("%w: dst cancellation %d after src cancellation %d",
				htlc.ErrInvalidCreationTime, deadline, srcCancellation)
		}

		addr = f.AddressOfEscrowDst(stamped)
		if err := tx.Deploy(addr, f.BindDst(addr)); err != nil {
			return fmt.Errorf("%w: %w", htlc.ErrEscrowExists, err)
		}
		if err := tx.Transfer(native, caller, addr, nativeValue); err != nil {
			return err
		}
		if imm.Token != native {
			if err := tx.Transfer(imm.Token, caller, addr, stamped.Amount); err != nil {
				return err
			}
		}
		tx.Emit(payload.NewEvent(f.address, &payload.DstEscrowCreated{
			Escrow:   addr,
			Hashlock: stamped.Hashlock,
			Taker:    stamped.Taker,
		}))
		return nil
	})
	if err != nil {
		f.log.Debug("dst escrow creation failed",
			zap.Stringer("caller", caller),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("create dst escrow: %w", err)
	}

	f.log.Info("dst escrow created",
		zap.Stringer("escrow", addr),
		zap.Stringer("hashlock", stamped.Hashlock),
		zap.Uint32("deployedAt", stamped.Timelocks.DeployedAt),
	)
	return f.BindDst(addr), stamped, nil
}

// CreateSrcEscrow deploys the source instance for imm. The maker funds the
// instance before it exists by sending to AddressOfEscrowSrc of the stamped
// record, so creation only checks that the principal and the safety deposit
// are already there.
func (f *Factory) CreateSrcEscrow(caller common.Address, imm *htlc.Immutables) (*escrow.SrcEscrow, *htlc.Immutables, error) {
	if err := imm.Validate(); err != nil {
		return nil, nil, fmt.Errorf("create src escrow: %w", err)
	}
	native := f.templates[escrow.Src].NativeToken

	var (
		stamped *htlc.Immutables
		addr    common.Address
	)
	err := f.host.Execute(func(tx htlc.Tx) error {
		var err error
		stamped, err = imm.WithDeployedAt(tx.Now())
		if err != nil {
			return err
		}
		addr = f.AddressOfEscrowSrc(stamped)

		nativeRequired := htlc.AmountOrZero(stamped.SafetyDeposit)
		if stamped.Token == native {
			nativeRequired.Add(nativeRequired, stamped.Amount)
		} else if bal := tx.BalanceOf(stamped.Token, addr); bal.Lt(stamped.Amount) {
			return fmt.Errorf("%w: escrow holds %s of %s, required %s",
				htlc.ErrInsufficientEscrowBalance, bal.Dec(), stamped.Token, stamped.Amount.Dec())
		}
		if bal := tx.BalanceOf(native, addr); bal.Lt(nativeRequired) {
			return fmt.Errorf("%w: escrow holds %s native, required %s",
				htlc.ErrInsufficientEscrowBalance, bal.Dec(), nativeRequired.Dec())
		}

		if err := tx.Deploy(addr, f.BindSrc(addr)); err != nil {
			return fmt.Errorf("%w: %w", htlc.ErrEscrowExists, err)
		}
		tx.Emit(payload.NewEvent(f.address, &payload.SrcEscrowCreated{
			Escrow:     addr,
			Immutables: stamped,
		}))
		return nil
	})
	if err != nil {
		f.log.Debug("src escrow creation failed",
			zap.Stringer("caller", caller),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("create src escrow: %w", err)
	}

	f.log.Info("src escrow created",
		zap.Stringer("escrow", addr),
		zap.Stringer("hashlock", stamped.Hashlock),
		zap.Uint32("deployedAt", stamped.Timelocks.DeployedAt),
	)
	return f.BindSrc(addr), stamped, nil
}
