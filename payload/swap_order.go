// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/htlc"
)

// SwapOrderVersion is the only SwapOrder encoding version
const SwapOrderVersion uint8 = 1

const chainIDLen = len(ids.ID{})

// SwapOrderLen is the fixed size of an encoded SwapOrder
const SwapOrderLen = 1 + // version
	htlc.WordLen*2 + // order hash, hashlock
	chainIDLen*2 + // source, destination chain
	common.AddressLength*4 + // maker, taker, source token, destination token
	htlc.WordLen*4 + // amounts and safety deposits
	htlc.WordLen // timelocks

// SwapOrder is the off-protocol agreement between maker and taker that both
// escrow legs are derived from. The two legs share the order hash, hashlock
// and timelocks; each leg has its own token, amount and safety deposit.
type SwapOrder struct {
	// Version for future upgrades
	Version uint8
	// OrderHash identifies the order on both chains
	OrderHash common.Hash
	// Hashlock commits to the maker's secret
	Hashlock common.Hash
	// SrcChain is where the maker locks funds
	SrcChain ids.ID
	// DstChain is where the taker locks funds
	DstChain ids.ID
	Maker    common.Address
	Taker    common.Address
	SrcToken common.Address
	DstToken common.Address

	SrcAmount        *uint256.Int
	DstAmount        *uint256.Int
	SrcSafetyDeposit *uint256.Int
	DstSafetyDeposit *uint256.Int

	// Timelocks holds the stage offsets of both legs, unstamped
	Timelocks htlc.Timelocks
}

// Verify performs basic validation
func (o *SwapOrder) Verify() error {
	switch {
	case o.Version != SwapOrderVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, o.Version)
	case o.SrcChain == o.DstChain:
		return fmt.Errorf("%w: source and destination chain are both %s", ErrInvalidPayload, o.SrcChain)
	case o.Maker == (common.Address{}):
		return fmt.Errorf("%w: maker address required", ErrInvalidPayload)
	case o.Taker == (common.Address{}):
		return fmt.Errorf("%w: taker address required", ErrInvalidPayload)
	case o.Hashlock == (common.Hash{}):
		return fmt.Errorf("%w: hashlock required", ErrInvalidPayload)
	}
	for _, imm := range []*htlc.Immutables{o.SrcImmutables(), o.DstImmutables()} {
		if err := imm.Validate(); err != nil {
			return err
		}
		if imm.Amount.IsZero() {
			return errors.New("amount must be positive")
		}
	}
	return nil
}

// SrcImmutables returns the source leg: the maker locks SrcAmount of
// SrcToken for the taker.
func (o *SwapOrder) SrcImmutables() *htlc.Immutables {
	return &htlc.Immutables{
		OrderHash:     o.OrderHash,
		Hashlock:      o.Hashlock,
		Maker:         o.Maker,
		Taker:         o.Taker,
		Token:         o.SrcToken,
		Amount:        htlc.AmountOrZero(o.SrcAmount),
		SafetyDeposit: htlc.AmountOrZero(o.SrcSafetyDeposit),
		Timelocks:     o.Timelocks,
	}
}

// DstImmutables returns the destination leg: the taker locks DstAmount of
// DstToken for the maker.
func (o *SwapOrder) DstImmutables() *htlc.Immutables {
	return &htlc.Immutables{
		OrderHash:     o.OrderHash,
		Hashlock:      o.Hashlock,
		Maker:         o.Maker,
		Taker:         o.Taker,
		Token:         o.DstToken,
		Amount:        htlc.AmountOrZero(o.DstAmount),
		SafetyDeposit: htlc.AmountOrZero(o.DstSafetyDeposit),
		Timelocks:     o.Timelocks,
	}
}

// Bytes serializes the swap order
func (o *SwapOrder) Bytes() []byte {
	buf := make([]byte, SwapOrderLen)
	offset := 0

	buf[offset] = o.Version
	offset++

	copy(buf[offset:], o.OrderHash[:])
	offset += htlc.WordLen
	copy(buf[offset:], o.Hashlock[:])
	offset += htlc.WordLen

	copy(buf[offset:], o.SrcChain[:])
	offset += chainIDLen
	copy(buf[offset:], o.DstChain[:])
	offset += chainIDLen

	for _, addr := range []common.Address{o.Maker, o.Taker, o.SrcToken, o.DstToken} {
		copy(buf[offset:], addr[:])
		offset += common.AddressLength
	}

	for _, v := range []*uint256.Int{o.SrcAmount, o.DstAmount, o.SrcSafetyDeposit, o.DstSafetyDeposit, o.Timelocks.Pack()} {
		if v != nil {
			v.PutUint256(buf[offset : offset+htlc.WordLen])
		}
		offset += htlc.WordLen
	}
	return buf
}

// ParseSwapOrder deserializes a swap order
func ParseSwapOrder(data []byte) (*SwapOrder, error) {
	if len(data) != SwapOrderLen {
		return nil, fmt.Errorf("%w: swap order is %d bytes, expected %d", ErrInvalidPayload, len(data), SwapOrderLen)
	}

	offset := 0
	o := &SwapOrder{}

	o.Version = data[offset]
	offset++
	if o.Version != SwapOrderVersion {
		return nil, fmt.Errorf("unsupported version: %d", o.Version)
	}

	copy(o.OrderHash[:], data[offset:offset+htlc.WordLen])
	offset += htlc.WordLen
	copy(o.Hashlock[:], data[offset:offset+htlc.WordLen])
	offset += htlc.WordLen

	copy(o.SrcChain[:], data[offset:offset+chainIDLen])
	offset += chainIDLen
	copy(o.DstChain[:], data[offset:offset+chainIDLen])
	offset += chainIDLen

	for _, addr := range []*common.Address{&o.Maker, &o.Taker, &o.SrcToken, &o.DstToken} {
		copy(addr[:], data[offset:offset+common.AddressLength])
		offset += common.AddressLength
	}

	words := make([]*uint256.Int, 5)
	for i := range words {
		words[i] = new(uint256.Int).SetBytes32(data[offset : offset+htlc.WordLen])
		offset += htlc.WordLen
	}
	o.SrcAmount, o.DstAmount = words[0], words[1]
	o.SrcSafetyDeposit, o.DstSafetyDeposit = words[2], words[3]
	o.Timelocks = htlc.UnpackTimelocks(words[4])

	return o, nil
}
