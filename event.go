// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"github.com/luxfi/geth/common"
)

// Event is a log entry emitted by an escrow instance or the factory. Data is
// the payload encoding for Type, see package payload.
type Event struct {
	Type    string
	Address common.Address
	Data    []byte
}
