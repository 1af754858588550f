// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/chain"
	"github.com/luxfi/htlc/payload"
)

// Stage offsets: src 10/120/1000/1200, dst 300/600/900.
var dstOffsets = []uint32{10, 120, 1000, 1200, 300, 600, 900}

func TestDstWithdraw(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)
	e := f.dst()

	f.at(t, 301)
	require.NoError(e.Withdraw(taker, f.secret, f.imm))

	require.Equal(uint64(1000), f.balance(swapToken, maker))
	require.Equal(uint64(100), f.balance(nativeToken, taker))
	require.Zero(f.balance(swapToken, f.addr))
	require.Zero(f.balance(nativeToken, f.addr))

	events := f.chain.Events(0)
	require.Len(events, 1)
	require.Equal(payload.WithdrawalType, events[0].Type)
	require.Equal(f.addr, events[0].Address)

	p, err := payload.ParseEvent(events[0])
	require.NoError(err)
	w, ok := p.(*payload.Withdrawal)
	require.True(ok)
	require.Equal(f.secret[:], w.Secret[:])
	require.Equal(maker, w.Recipient)

	// The instance is drained, so a second withdrawal aborts on the ledger.
	err = e.Withdraw(taker, f.secret, f.imm)
	require.ErrorIs(err, chain.ErrInsufficientBalance)
	require.Len(f.chain.Events(0), 1)
}

func TestDstWithdrawAfterCancellation(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)

	f.at(t, 901)
	err := f.dst().Withdraw(taker, f.secret, f.imm)
	require.ErrorIs(err, htlc.ErrInvalidTime)
	require.Equal(htlc.CodeInvalidTime, htlc.ErrorCode(err))
	require.Zero(f.balance(swapToken, maker))
	require.Equal(uint64(1000), f.balance(swapToken, f.addr))
}

func TestDstWithdrawGates(t *testing.T) {
	tests := []struct {
		name    string
		secret  func(f *fixture) [htlc.SecretLen]byte
		asMaker bool
		offset  uint64
		wantErr error
	}{
		{name: "before window", offset: 299, wantErr: htlc.ErrInvalidTime},
		{name: "window opens", offset: 300},
		{name: "last second", offset: 899},
		{name: "window closed", offset: 900, wantErr: htlc.ErrInvalidTime},
		{name: "not taker", offset: 301, asMaker: true, wantErr: htlc.ErrInvalidCaller},
		{
			name:   "wrong secret",
			offset: 301,
			secret: func(f *fixture) [htlc.SecretLen]byte {
				s := f.secret
				s[31] ^= 0xff
				return s
			},
			wantErr: htlc.ErrInvalidSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			f := newFixture(t, Dst, dstOffsets...)
			f.at(t, tt.offset)

			secret := f.secret
			if tt.secret != nil {
				secret = tt.secret(f)
			}
			who := taker
			if tt.asMaker {
				who = maker
			}

			err := f.dst().Withdraw(who, secret, f.imm)
			if tt.wantErr != nil {
				require.ErrorIs(err, tt.wantErr)
				require.Equal(uint64(1000), f.balance(swapToken, f.addr))
				require.Empty(f.chain.Events(0))
				return
			}
			require.NoError(err)
			require.Equal(uint64(1000), f.balance(swapToken, maker))
		})
	}
}

func TestDstPublicWithdraw(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)
	require.NoError(f.chain.Mint(accessToken, resolver, uint256.NewInt(1)))
	e := f.dst()

	// Private window only.
	f.at(t, 599)
	require.ErrorIs(e.PublicWithdraw(resolver, f.secret, f.imm), htlc.ErrInvalidTime)

	f.at(t, 600)
	require.ErrorIs(e.PublicWithdraw(stranger, f.secret, f.imm), htlc.ErrInvalidCaller)
	require.NoError(e.PublicWithdraw(resolver, f.secret, f.imm))

	require.Equal(uint64(1000), f.balance(swapToken, maker))
	require.Equal(uint64(100), f.balance(nativeToken, resolver))
}

func TestDstCancel(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)
	e := f.dst()

	f.at(t, 899)
	require.ErrorIs(e.Cancel(taker, f.imm), htlc.ErrInvalidTime)

	f.at(t, 901)
	require.ErrorIs(e.Cancel(maker, f.imm), htlc.ErrInvalidCaller)
	require.NoError(e.Cancel(taker, f.imm))

	require.Equal(uint64(1000), f.balance(swapToken, taker))
	require.Equal(uint64(100), f.balance(nativeToken, taker))
	require.Zero(f.balance(swapToken, maker))

	events := f.chain.Events(0)
	require.Len(events, 1)
	p, err := payload.ParseEvent(events[0])
	require.NoError(err)
	c, ok := p.(*payload.Cancelled)
	require.True(ok)
	require.Equal(taker, c.Refunded)
}

func TestDstRejectsForgedImmutables(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)
	f.at(t, 301)

	// A record whose amount is smaller than what is actually locked.
	forged := f.imm.Clone()
	forged.Amount = uint256.NewInt(1)
	require.ErrorIs(f.dst().Withdraw(taker, f.secret, forged), htlc.ErrInvalidImmutables)

	// A record with a later schedule, to reopen the window.
	f.at(t, 950)
	shifted := f.imm.Clone()
	shifted.Timelocks.Offsets[htlc.DstCancellation] = 2000
	require.ErrorIs(f.dst().Withdraw(taker, f.secret, shifted), htlc.ErrInvalidImmutables)
	require.ErrorIs(f.dst().Withdraw(taker, f.secret, nil), htlc.ErrInvalidImmutables)

	require.Equal(uint64(1000), f.balance(swapToken, f.addr))
}

func TestDstWithdrawRollsBack(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, Dst, dstOffsets...)
	e := f.dst()

	// Move the native deposit out so the second transfer of the call fails.
	require.NoError(f.chain.Execute(func(tx htlc.Tx) error {
		return tx.Transfer(nativeToken, f.addr, stranger, f.imm.SafetyDeposit)
	}))

	f.at(t, 301)
	err := e.Withdraw(taker, f.secret, f.imm)
	require.ErrorIs(err, chain.ErrInsufficientBalance)

	// The principal transfer that preceded the failure was undone.
	require.Equal(uint64(1000), f.balance(swapToken, f.addr))
	require.Zero(f.balance(swapToken, maker))
	require.Empty(f.chain.Events(0))
}
