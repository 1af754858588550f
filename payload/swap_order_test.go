// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/htlc"
)

func testSwapOrder(t *testing.T) *SwapOrder {
	t.Helper()

	_, hashlock, err := htlc.NewSecret()
	require.NoError(t, err)
	tl, err := htlc.NewTimelocks(10, 120, 1000, 1200, 300, 600, 900)
	require.NoError(t, err)

	return &SwapOrder{
		Version:          SwapOrderVersion,
		OrderHash:        htlc.Keccak256(hashlock[:]),
		Hashlock:         hashlock,
		SrcChain:         generateTestID(),
		DstChain:         generateTestID(),
		Maker:            maker,
		Taker:            taker,
		SrcToken:         token,
		DstToken:         common.HexToAddress("0x00000000000000000000000000000000000070c1"),
		SrcAmount:        uint256.NewInt(1_000_000),
		DstAmount:        uint256.NewInt(990_000),
		SrcSafetyDeposit: uint256.NewInt(100),
		DstSafetyDeposit: uint256.NewInt(50),
		Timelocks:        tl,
	}
}

func TestSwapOrderRoundTrip(t *testing.T) {
	require := require.New(t)

	o := testSwapOrder(t)
	require.NoError(o.Verify())

	b := o.Bytes()
	require.Len(b, SwapOrderLen)

	parsed, err := ParseSwapOrder(b)
	require.NoError(err)
	require.Equal(b, parsed.Bytes())
	require.Equal(o.SrcChain, parsed.SrcChain)
	require.Equal(o.DstToken, parsed.DstToken)
	require.Equal(o.DstAmount.Uint64(), parsed.DstAmount.Uint64())
	require.Equal(o.Timelocks, parsed.Timelocks)
	require.NoError(parsed.Verify())
}

func TestParseSwapOrderRejects(t *testing.T) {
	require := require.New(t)

	b := testSwapOrder(t).Bytes()
	_, err := ParseSwapOrder(b[:len(b)-1])
	require.ErrorIs(err, ErrInvalidPayload)

	b[0] = SwapOrderVersion + 1
	_, err = ParseSwapOrder(b)
	require.Error(err)
}

func TestSwapOrderLegs(t *testing.T) {
	require := require.New(t)

	o := testSwapOrder(t)
	src, dst := o.SrcImmutables(), o.DstImmutables()

	// Both legs share the order identity and schedule.
	for _, imm := range []*htlc.Immutables{src, dst} {
		require.Equal(o.OrderHash, imm.OrderHash)
		require.Equal(o.Hashlock, imm.Hashlock)
		require.Equal(maker, imm.Maker)
		require.Equal(taker, imm.Taker)
		require.Equal(o.Timelocks, imm.Timelocks)
	}
	require.Equal(o.SrcToken, src.Token)
	require.Equal(uint64(1_000_000), src.Amount.Uint64())
	require.Equal(uint64(100), src.SafetyDeposit.Uint64())
	require.Equal(o.DstToken, dst.Token)
	require.Equal(uint64(990_000), dst.Amount.Uint64())
	require.Equal(uint64(50), dst.SafetyDeposit.Uint64())
	require.NotEqual(src.Hash(), dst.Hash())

	// Legs are fresh copies.
	src.Amount.SetUint64(1)
	require.Equal(uint64(1_000_000), o.SrcAmount.Uint64())
}

func TestSwapOrderVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *SwapOrder)
		wantErr error
	}{
		{name: "valid"},
		{name: "version", modify: func(o *SwapOrder) { o.Version = 0 }, wantErr: ErrInvalidPayload},
		{name: "same chain", modify: func(o *SwapOrder) { o.DstChain = o.SrcChain }, wantErr: ErrInvalidPayload},
		{name: "no maker", modify: func(o *SwapOrder) { o.Maker = common.Address{} }, wantErr: ErrInvalidPayload},
		{name: "no taker", modify: func(o *SwapOrder) { o.Taker = common.Address{} }, wantErr: ErrInvalidPayload},
		{name: "no hashlock", modify: func(o *SwapOrder) { o.Hashlock = common.Hash{} }, wantErr: ErrInvalidPayload},
		{
			name:    "wide amount",
			modify:  func(o *SwapOrder) { o.DstAmount = new(uint256.Int).Lsh(uint256.NewInt(1), 128) },
			wantErr: htlc.ErrAmountOverflow,
		},
		{name: "zero amount", modify: func(o *SwapOrder) { o.SrcAmount = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testSwapOrder(t)
			if tt.modify == nil {
				require.NoError(t, o.Verify())
				return
			}
			tt.modify(o)
			err := o.Verify()
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
