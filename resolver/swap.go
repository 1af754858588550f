// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package resolver

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/payload"
)

// SwapState tracks how far a swap has progressed across both chains
type SwapState uint8

const (
	// SwapStatePending means the order is accepted and nothing is deployed
	SwapStatePending SwapState = iota
	// SwapStateSrcLocked means the maker's funds sit in the source escrow
	SwapStateSrcLocked
	// SwapStateDstLocked means both escrows are funded
	SwapStateDstLocked
	// SwapStateDstWithdrawn means the maker has been paid on the
	// destination chain and the secret is public
	SwapStateDstWithdrawn
	// SwapStateSettled means the resolver has been paid on the source chain
	SwapStateSettled
	// SwapStateDstRefunded means the destination escrow was cancelled and
	// the source escrow still awaits cancellation
	SwapStateDstRefunded
	// SwapStateCancelled means every deployed escrow was refunded
	SwapStateCancelled
)

func (s SwapState) String() string {
	switch s {
	case SwapStatePending:
		return "pending"
	case SwapStateSrcLocked:
		return "src_locked"
	case SwapStateDstLocked:
		return "dst_locked"
	case SwapStateDstWithdrawn:
		return "dst_withdrawn"
	case SwapStateSettled:
		return "settled"
	case SwapStateDstRefunded:
		return "dst_refunded"
	case SwapStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s SwapState) Terminal() bool {
	return s == SwapStateSettled || s == SwapStateCancelled
}

// Swap is the resolver's view of one order. The stamped Immutables of each
// leg are kept once the leg is deployed since they are needed for every
// later call on that escrow.
type Swap struct {
	Order         *payload.SwapOrder
	State         SwapState
	SrcEscrow     common.Address
	DstEscrow     common.Address
	SrcImmutables *htlc.Immutables
	DstImmutables *htlc.Immutables
	Secret        [htlc.SecretLen]byte
	HasSecret     bool
	CreatedAt     uint64
	UpdatedAt     uint64
}

// ID identifies the swap by its hashlock
func (s *Swap) ID() common.Hash {
	return s.Order.Hashlock
}

// storedSwap is the persisted form of a Swap
type storedSwap struct {
	Order         []byte
	State         uint8
	SrcEscrow     common.Address
	DstEscrow     common.Address
	SrcImmutables []byte
	DstImmutables []byte
	Secret        common.Hash
	HasSecret     bool
	CreatedAt     uint64
	UpdatedAt     uint64
}

func swapKey(id common.Hash) []byte {
	return append([]byte(swapPrefix), id[:]...)
}

const swapPrefix = "swap/"

func encodeSwap(s *Swap) ([]byte, error) {
	stored := &storedSwap{
		Order:     s.Order.Bytes(),
		State:     uint8(s.State),
		SrcEscrow: s.SrcEscrow,
		DstEscrow: s.DstEscrow,
		Secret:    s.Secret,
		HasSecret: s.HasSecret,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.SrcImmutables != nil {
		stored.SrcImmutables = s.SrcImmutables.Bytes()
	}
	if s.DstImmutables != nil {
		stored.DstImmutables = s.DstImmutables.Bytes()
	}
	return htlc.Codec.Marshal(htlc.CodecVersion, stored)
}

func decodeSwap(b []byte) (*Swap, error) {
	stored := &storedSwap{}
	if _, err := htlc.Codec.Unmarshal(b, stored); err != nil {
		return nil, fmt.Errorf("failed to decode swap: %w", err)
	}
	order, err := payload.ParseSwapOrder(stored.Order)
	if err != nil {
		return nil, err
	}
	s := &Swap{
		Order:     order,
		State:     SwapState(stored.State),
		SrcEscrow: stored.SrcEscrow,
		DstEscrow: stored.DstEscrow,
		Secret:    stored.Secret,
		HasSecret: stored.HasSecret,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
	if len(stored.SrcImmutables) > 0 {
		if s.SrcImmutables, err = htlc.ParseImmutables(stored.SrcImmutables); err != nil {
			return nil, err
		}
	}
	if len(stored.DstImmutables) > 0 {
		if s.DstImmutables, err = htlc.ParseImmutables(stored.DstImmutables); err != nil {
			return nil, err
		}
	}
	return s, nil
}
