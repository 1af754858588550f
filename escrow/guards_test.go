// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/htlc"
)

type balances map[common.Address]*uint256.Int

func (b balances) BalanceOf(_, holder common.Address) *uint256.Int {
	return b[holder]
}

func TestOnlyAfterOnlyBefore(t *testing.T) {
	const deadline = uint64(1000)

	tests := []struct {
		now        uint64
		afterFails bool
		beforeFail bool
	}{
		{now: 0, afterFails: true, beforeFail: false},
		{now: deadline - 1, afterFails: true, beforeFail: false},
		{now: deadline, afterFails: false, beforeFail: true},
		{now: deadline + 1, afterFails: false, beforeFail: true},
	}

	for _, tt := range tests {
		require := require.New(t)

		err := OnlyAfter(tt.now, deadline)
		if tt.afterFails {
			require.ErrorIs(err, htlc.ErrInvalidTime, "only after at %d", tt.now)
		} else {
			require.NoError(err, "only after at %d", tt.now)
		}

		err = OnlyBefore(tt.now, deadline)
		if tt.beforeFail {
			require.ErrorIs(err, htlc.ErrInvalidTime, "only before at %d", tt.now)
		} else {
			require.NoError(err, "only before at %d", tt.now)
		}
	}
}

func TestHalfOpenWindow(t *testing.T) {
	require := require.New(t)

	start, stop := uint64(300), uint64(900)
	inWindow := func(now uint64) bool {
		return OnlyAfter(now, start) == nil && OnlyBefore(now, stop) == nil
	}

	require.False(inWindow(start - 1))
	require.True(inWindow(start))
	require.True(inWindow(stop - 1))
	require.False(inWindow(stop))
}

func TestOnlyTaker(t *testing.T) {
	require := require.New(t)

	imm := &htlc.Immutables{Taker: taker}
	require.NoError(OnlyTaker(taker, imm))
	require.ErrorIs(OnlyTaker(maker, imm), htlc.ErrInvalidCaller)
	require.ErrorIs(OnlyTaker(taker, nil), htlc.ErrInvalidImmutables)
}

func TestOnlyAccessTokenHolder(t *testing.T) {
	require := require.New(t)

	b := balances{
		resolver: uint256.NewInt(1),
		stranger: uint256.NewInt(0),
	}
	require.NoError(OnlyAccessTokenHolder(b, accessToken, resolver))
	require.ErrorIs(OnlyAccessTokenHolder(b, accessToken, stranger), htlc.ErrInvalidCaller)
	require.ErrorIs(OnlyAccessTokenHolder(b, accessToken, maker), htlc.ErrInvalidCaller)
}

func TestOnlyValidSecret(t *testing.T) {
	require := require.New(t)

	secret, hashlock, err := htlc.NewSecret()
	require.NoError(err)
	imm := &htlc.Immutables{Hashlock: hashlock}

	require.NoError(OnlyValidSecret(secret, imm))

	wrong := secret
	wrong[0] ^= 0x01
	err = OnlyValidSecret(wrong, imm)
	require.ErrorIs(err, htlc.ErrInvalidSecret)
	require.Equal(htlc.CodeInvalidSecret, htlc.ErrorCode(err))

	var zero [htlc.SecretLen]byte
	require.ErrorIs(OnlyValidSecret(zero, imm), htlc.ErrInvalidSecret)
}

func TestValidateImmutables(t *testing.T) {
	require := require.New(t)

	imm := &htlc.Immutables{
		OrderHash:     htlc.Keccak256([]byte("order")),
		Hashlock:      htlc.Keccak256([]byte("lock")),
		Maker:         maker,
		Taker:         taker,
		Token:         swapToken,
		Amount:        uint256.NewInt(1000),
		SafetyDeposit: uint256.NewInt(100),
	}
	initCodeHash := testConfig.InitCodeHash(Dst)
	self := htlc.ComputeAddress(factoryAddr, imm.Hash(), initCodeHash)

	require.NoError(ValidateImmutables(factoryAddr, initCodeHash, self, imm))
	require.NoError(ValidateImmutables(factoryAddr, initCodeHash, self, imm.Clone()))

	tampered := imm.Clone()
	tampered.Taker = stranger
	require.ErrorIs(ValidateImmutables(factoryAddr, initCodeHash, self, tampered), htlc.ErrInvalidImmutables)

	// Same record, other template.
	require.ErrorIs(ValidateImmutables(factoryAddr, testConfig.InitCodeHash(Src), self, imm), htlc.ErrInvalidImmutables)

	// Same record, other deployer.
	require.ErrorIs(ValidateImmutables(resolver, initCodeHash, self, imm), htlc.ErrInvalidImmutables)

	require.ErrorIs(ValidateImmutables(factoryAddr, initCodeHash, self, nil), htlc.ErrInvalidImmutables)
}
