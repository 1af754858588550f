// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// CodecVersion is the only encoding version written by this package
const CodecVersion = 0

const versionLen = 2

var (
	errShortRecord        = errors.New("record shorter than its version prefix")
	errUnsupportedVersion = errors.New("unsupported codec version")
)

// CodecImpl serializes stored records as a big-endian version prefix followed
// by the rlp encoding of the value
type CodecImpl struct{}

// Codec is the default codec instance
var Codec = &CodecImpl{}

// Marshal serializes v under version
func (c *CodecImpl) Marshal(version uint16, v interface{}) ([]byte, error) {
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: %d", errUnsupportedVersion, version)
	}
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	b := make([]byte, versionLen, versionLen+len(body))
	binary.BigEndian.PutUint16(b, version)
	return append(b, body...), nil
}

// Unmarshal deserializes b into v and returns the version it was written with
func (c *CodecImpl) Unmarshal(b []byte, v interface{}) (uint16, error) {
	if len(b) < versionLen {
		return 0, errShortRecord
	}
	version := binary.BigEndian.Uint16(b)
	if version != CodecVersion {
		return version, fmt.Errorf("%w: %d", errUnsupportedVersion, version)
	}
	return version, rlp.DecodeBytes(b[versionLen:], v)
}
