// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecVersionPrefix(t *testing.T) {
	require := require.New(t)

	imm := newTestImmutables(t)
	b, err := Codec.Marshal(CodecVersion, imm)
	require.NoError(err)
	require.Equal([]byte{0, 0}, b[:versionLen])

	_, err = Codec.Marshal(CodecVersion+1, imm)
	require.ErrorIs(err, errUnsupportedVersion)

	_, err = Codec.Unmarshal(b[:1], &Immutables{})
	require.ErrorIs(err, errShortRecord)

	b[1] = 7
	version, err := Codec.Unmarshal(b, &Immutables{})
	require.ErrorIs(err, errUnsupportedVersion)
	require.Equal(uint16(7), version)
}
