// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
)

const (
	// ImmutablesLen is the size of the canonical encoding: eight words
	ImmutablesLen = 8 * WordLen

	// MaxAmountBits bounds Amount and SafetyDeposit
	MaxAmountBits = 128
)

var errImmutablesLength = errors.New("invalid immutables length")

// Immutables identifies one escrow instance. It is fixed when the instance is
// created and the instance address is derived from its hash, so any change to
// any field yields a different instance.
type Immutables struct {
	OrderHash     common.Hash
	Hashlock      common.Hash
	Maker         common.Address
	Taker         common.Address
	Token         common.Address
	Amount        *uint256.Int
	SafetyDeposit *uint256.Int
	Timelocks     Timelocks
}

// Validate checks the value bounds of the record
func (i *Immutables) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil immutables", ErrInvalidImmutables)
	}
	if i.Amount != nil && i.Amount.BitLen() > MaxAmountBits {
		return fmt.Errorf("%w: amount %s", ErrAmountOverflow, i.Amount.Dec())
	}
	if i.SafetyDeposit != nil && i.SafetyDeposit.BitLen() > MaxAmountBits {
		return fmt.Errorf("%w: safety deposit %s", ErrAmountOverflow, i.SafetyDeposit.Dec())
	}
	return nil
}

// Bytes returns the canonical encoding: eight big-endian 32-byte words in
// field order, addresses left-padded, Timelocks packed.
func (i *Immutables) Bytes() []byte {
	buf := make([]byte, ImmutablesLen)
	offset := 0

	copy(buf[offset:], i.OrderHash[:])
	offset += WordLen
	copy(buf[offset:], i.Hashlock[:])
	offset += WordLen

	for _, addr := range []common.Address{i.Maker, i.Taker, i.Token} {
		copy(buf[offset+WordLen-common.AddressLength:], addr[:])
		offset += WordLen
	}

	for _, v := range []*uint256.Int{i.Amount, i.SafetyDeposit, i.Timelocks.Pack()} {
		if v != nil {
			v.PutUint256(buf[offset : offset+WordLen])
		}
		offset += WordLen
	}
	return buf
}

// Hash is the instance salt: keccak256 of the canonical encoding
func (i *Immutables) Hash() common.Hash {
	return Keccak256(i.Bytes())
}

// Equal reports whether both records identify the same instance
func (i *Immutables) Equal(other *Immutables) bool {
	if i == nil || other == nil {
		return i == other
	}
	return bytes.Equal(i.Bytes(), other.Bytes())
}

// Clone returns a deep copy
func (i *Immutables) Clone() *Immutables {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Amount = cloneAmount(i.Amount)
	clone.SafetyDeposit = cloneAmount(i.SafetyDeposit)
	return &clone
}

// WithDeployedAt returns a copy whose schedule is stamped with now
func (i *Immutables) WithDeployedAt(now uint64) (*Immutables, error) {
	stamped, err := i.Timelocks.SetDeployedAt(now)
	if err != nil {
		return nil, err
	}
	clone := i.Clone()
	clone.Timelocks = stamped
	return clone, nil
}

// ParseImmutables decodes a canonical encoding
func ParseImmutables(b []byte) (*Immutables, error) {
	if len(b) != ImmutablesLen {
		return nil, fmt.Errorf("%w: %d != %d", errImmutablesLength, len(b), ImmutablesLen)
	}

	i := &Immutables{}
	offset := 0

	copy(i.OrderHash[:], b[offset:offset+WordLen])
	offset += WordLen
	copy(i.Hashlock[:], b[offset:offset+WordLen])
	offset += WordLen

	for _, addr := range []*common.Address{&i.Maker, &i.Taker, &i.Token} {
		word := b[offset : offset+WordLen]
		pad := WordLen - common.AddressLength
		if !bytes.Equal(word[:pad], make([]byte, pad)) {
			return nil, fmt.Errorf("%w: dirty address padding at byte %d", ErrInvalidImmutables, offset)
		}
		copy(addr[:], word[pad:])
		offset += WordLen
	}

	i.Amount = new(uint256.Int).SetBytes32(b[offset : offset+WordLen])
	offset += WordLen
	i.SafetyDeposit = new(uint256.Int).SetBytes32(b[offset : offset+WordLen])
	offset += WordLen
	i.Timelocks = UnpackTimelocks(new(uint256.Int).SetBytes32(b[offset : offset+WordLen]))

	return i, nil
}

// EncodeRLP implements rlp.Encoder using the canonical encoding as the
// single rlp string. A nil record encodes as the empty string.
func (i *Immutables) EncodeRLP(w io.Writer) error {
	if i == nil {
		return rlp.Encode(w, []byte{})
	}
	return rlp.Encode(w, i.Bytes())
}

// DecodeRLP implements rlp.Decoder for Immutables
func (i *Immutables) DecodeRLP(s *rlp.Stream) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	parsed, err := ParseImmutables(b)
	if err != nil {
		return fmt.Errorf("failed to decode immutables: %w", err)
	}
	*i = *parsed
	return nil
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// AmountOrZero returns v, or zero when v is nil
func AmountOrZero(v *uint256.Int) *uint256.Int {
	return cloneAmount(v)
}
