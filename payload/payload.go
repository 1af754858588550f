// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/htlc"
)

// Event types
const (
	// WithdrawalType is emitted when an escrow releases its principal
	// against the secret
	WithdrawalType = "withdrawal"

	// CancelledType is emitted when an escrow refunds its principal
	CancelledType = "cancelled"

	// FundsRescuedType is emitted when the taker sweeps leftover funds
	FundsRescuedType = "funds_rescued"

	// DstEscrowCreatedType is emitted by the factory for a new destination
	// escrow
	DstEscrowCreatedType = "dst_escrow_created"

	// SrcEscrowCreatedType is emitted by the factory for a new source escrow
	SrcEscrowCreatedType = "src_escrow_created"
)

var (
	// ErrInvalidPayload is returned when a payload is invalid
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownType is returned when parsing an event type with no payload
	ErrUnknownType = errors.New("unknown event type")
)

// Payload is the body of an escrow or factory event
type Payload interface {
	// Type returns the event type the payload is published under
	Type() string

	// Bytes returns the byte representation of the payload
	Bytes() []byte

	// Verify verifies the payload
	Verify() error
}

// NewEvent wraps p into an event emitted by addr
func NewEvent(addr common.Address, p Payload) *htlc.Event {
	return &htlc.Event{
		Type:    p.Type(),
		Address: addr,
		Data:    p.Bytes(),
	}
}

// ParseEvent decodes the payload of evt
func ParseEvent(evt *htlc.Event) (Payload, error) {
	if evt == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidPayload)
	}
	return Parse(evt.Type, evt.Data)
}

// Parse decodes bytes as the payload registered for eventType
func Parse(eventType string, bytes []byte) (Payload, error) {
	var p Payload
	switch eventType {
	case WithdrawalType:
		p = &Withdrawal{}
	case CancelledType:
		p = &Cancelled{}
	case FundsRescuedType:
		p = &FundsRescued{}
	case DstEscrowCreatedType:
		p = &DstEscrowCreated{}
	case SrcEscrowCreatedType:
		p = &SrcEscrowCreated{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, eventType)
	}
	if err := rlp.DecodeBytes(bytes, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, eventType, err)
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Withdrawal publishes the secret an escrow was unlocked with. Watchers on the
// other chain use it to complete their own leg.
type Withdrawal struct {
	Secret    common.Hash
	Recipient common.Address
}

// NewWithdrawal creates a new withdrawal payload
func NewWithdrawal(secret [htlc.SecretLen]byte, recipient common.Address) *Withdrawal {
	return &Withdrawal{Secret: secret, Recipient: recipient}
}

func (*Withdrawal) Type() string { return WithdrawalType }

// Verify verifies the withdrawal payload
func (w *Withdrawal) Verify() error {
	if w.Recipient == (common.Address{}) {
		return fmt.Errorf("%w: empty recipient", ErrInvalidPayload)
	}
	return nil
}

// Bytes returns the byte representation of the payload
func (w *Withdrawal) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(w)
	return bytes
}

// Cancelled carries the refunded party
type Cancelled struct {
	Refunded common.Address
}

func (*Cancelled) Type() string { return CancelledType }

// Verify verifies the cancellation payload
func (c *Cancelled) Verify() error {
	return nil
}

// Bytes returns the byte representation of the payload
func (c *Cancelled) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(c)
	return bytes
}

// FundsRescued records a rescue sweep
type FundsRescued struct {
	Token  common.Address
	Amount *uint256.Int
}

func (*FundsRescued) Type() string { return FundsRescuedType }

// Verify verifies the rescue payload
func (f *FundsRescued) Verify() error {
	if f.Amount == nil {
		return fmt.Errorf("%w: missing amount", ErrInvalidPayload)
	}
	return nil
}

// Bytes returns the byte representation of the payload
func (f *FundsRescued) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(f)
	return bytes
}

// DstEscrowCreated announces a destination escrow
type DstEscrowCreated struct {
	Escrow   common.Address
	Hashlock common.Hash
	Taker    common.Address
}

func (*DstEscrowCreated) Type() string { return DstEscrowCreatedType }

// Verify verifies the creation payload
func (d *DstEscrowCreated) Verify() error {
	if d.Escrow == (common.Address{}) {
		return fmt.Errorf("%w: empty escrow address", ErrInvalidPayload)
	}
	return nil
}

// Bytes returns the byte representation of the payload
func (d *DstEscrowCreated) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(d)
	return bytes
}

// SrcEscrowCreated announces a source escrow together with its stamped
// Immutables, which the taker needs to build the destination leg.
type SrcEscrowCreated struct {
	Escrow     common.Address
	Immutables *htlc.Immutables
}

func (*SrcEscrowCreated) Type() string { return SrcEscrowCreatedType }

// Verify verifies the creation payload
func (s *SrcEscrowCreated) Verify() error {
	if s.Escrow == (common.Address{}) {
		return fmt.Errorf("%w: empty escrow address", ErrInvalidPayload)
	}
	if s.Immutables == nil {
		return fmt.Errorf("%w: missing immutables", ErrInvalidPayload)
	}
	return nil
}

// Bytes returns the byte representation of the payload
func (s *SrcEscrowCreated) Bytes() []byte {
	bytes, _ := rlp.EncodeToBytes(s)
	return bytes
}
