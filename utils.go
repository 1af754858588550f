// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package htlc

import (
	"crypto/rand"

	"github.com/luxfi/geth/common"
	"golang.org/x/crypto/sha3"
)

// Constants
const (
	// WordLen is the width of one canonical encoding word
	WordLen = 32

	// SecretLen is the length of an HTLC preimage
	SecretLen = 32

	// create2Prefix is prepended to deterministic address preimages
	create2Prefix = 0xff
)

// Keccak256 computes the legacy Keccak-256 digest of the concatenated inputs
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// HashSecret returns the hashlock committing to secret
func HashSecret(secret [SecretLen]byte) common.Hash {
	return Keccak256(secret[:])
}

// NewSecret draws a random preimage and returns it with its hashlock
func NewSecret() ([SecretLen]byte, common.Hash, error) {
	var secret [SecretLen]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, common.Hash{}, err
	}
	return secret, HashSecret(secret), nil
}

// ComputeAddress derives the address an instance deployed by deployer with
// the given salt and init code hash will occupy:
//
//	keccak256(0xff ++ deployer ++ salt ++ initCodeHash)[12:]
func ComputeAddress(deployer common.Address, salt common.Hash, initCodeHash common.Hash) common.Address {
	digest := Keccak256([]byte{create2Prefix}, deployer[:], salt[:], initCodeHash[:])
	return common.BytesToAddress(digest[12:])
}
