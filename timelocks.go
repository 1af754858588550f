// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

// Stage names one window boundary of the escrow schedule. The numeric value
// is the index of the stage's 32-bit slot in the packed word.
type Stage uint8

const (
	SrcWithdrawal Stage = iota
	SrcPublicWithdrawal
	SrcCancellation
	SrcPublicCancellation
	DstWithdrawal
	DstPublicWithdrawal
	DstCancellation

	// NumStages is the number of offsets carried by Timelocks
	NumStages = 7
)

func (s Stage) String() string {
	switch s {
	case SrcWithdrawal:
		return "src_withdrawal"
	case SrcPublicWithdrawal:
		return "src_public_withdrawal"
	case SrcCancellation:
		return "src_cancellation"
	case SrcPublicCancellation:
		return "src_public_cancellation"
	case DstWithdrawal:
		return "dst_withdrawal"
	case DstPublicWithdrawal:
		return "dst_public_withdrawal"
	case DstCancellation:
		return "dst_cancellation"
	default:
		return "unknown"
	}
}

// Valid reports whether the stage is one of the seven defined stages
func (s Stage) Valid() bool {
	return s < NumStages
}

// Timelocks is the unpacked schedule of an escrow: the absolute deployment
// timestamp plus one relative offset (seconds after DeployedAt) per Stage.
// It is only ever turned into a 256-bit word at the encoding boundary.
type Timelocks struct {
	DeployedAt uint32
	Offsets    [NumStages]uint32
}

// NewTimelocks builds an unstamped schedule from per-stage offsets given in
// Stage order. Missing trailing offsets are zero.
func NewTimelocks(offsets ...uint32) (Timelocks, error) {
	var t Timelocks
	if len(offsets) > NumStages {
		return t, fmt.Errorf("too many stage offsets: %d > %d", len(offsets), NumStages)
	}
	copy(t.Offsets[:], offsets)
	return t, nil
}

// UnpackTimelocks splits a packed word into its deployment timestamp (bits
// 224..255) and stage offsets.
func UnpackTimelocks(word *uint256.Int) Timelocks {
	var t Timelocks
	if word == nil {
		return t
	}
	var b [32]byte
	word.WriteToArray32(&b)
	t.DeployedAt = binary.BigEndian.Uint32(b[0:4])
	for i := 0; i < NumStages; i++ {
		// Stage i occupies bits 32*i..32*i+31, counted from the low end.
		end := 32 - i*4
		t.Offsets[i] = binary.BigEndian.Uint32(b[end-4 : end])
	}
	return t
}

// Pack encodes the schedule into its 256-bit word
func (t Timelocks) Pack() *uint256.Int {
	var b [32]byte
	binary.BigEndian.PutUint32(b[0:4], t.DeployedAt)
	for i := 0; i < NumStages; i++ {
		end := 32 - i*4
		binary.BigEndian.PutUint32(b[end-4:end], t.Offsets[i])
	}
	return new(uint256.Int).SetBytes32(b[:])
}

// SetDeployedAt returns a copy of t with the deployment timestamp replaced.
// The previous value is always discarded, never merged. Offsets are kept.
func (t Timelocks) SetDeployedAt(value uint64) (Timelocks, error) {
	if value > math.MaxUint32 {
		return t, fmt.Errorf("%w: %d", ErrDeployedAtOverflow, value)
	}
	t.DeployedAt = uint32(value)
	return t, nil
}

// Offset returns the relative offset configured for stage
func (t Timelocks) Offset(stage Stage) uint32 {
	if !stage.Valid() {
		return 0
	}
	return t.Offsets[stage]
}

// Get returns the absolute time at which stage's window opens
func (t Timelocks) Get(stage Stage) uint64 {
	return uint64(t.DeployedAt) + uint64(t.Offset(stage))
}

// RescueStart returns the absolute time after which leftover funds may be
// rescued from an instance configured with rescueDelay.
func (t Timelocks) RescueStart(rescueDelay uint32) uint64 {
	return uint64(t.DeployedAt) + uint64(rescueDelay)
}

// Validate reports schedules whose windows are out of order on either chain.
// Escrow instances do not call it: ordering is the counterparties' contract.
func (t Timelocks) Validate() error {
	chains := [][]Stage{
		{SrcWithdrawal, SrcPublicWithdrawal, SrcCancellation, SrcPublicCancellation},
		{DstWithdrawal, DstPublicWithdrawal, DstCancellation},
	}
	for _, seq := range chains {
		for i := 1; i < len(seq); i++ {
			if t.Offset(seq[i]) < t.Offset(seq[i-1]) {
				return fmt.Errorf("stage %s (%d) precedes %s (%d)",
					seq[i], t.Offset(seq[i]), seq[i-1], t.Offset(seq[i-1]))
			}
		}
	}
	return nil
}

func (t Timelocks) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "deployed_at=%d", t.DeployedAt)
	for i := 0; i < NumStages; i++ {
		fmt.Fprintf(&sb, " %s=+%d", Stage(i), t.Offsets[i])
	}
	return sb.String()
}
