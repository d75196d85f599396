// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package pad

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Address is the 32-byte BLAKE3 content address of an encoded pad.
// The zero Address is never a valid content address (a pad always has
// a non-empty header) and doubles as the "no pad" marker: the terminal
// pad's next pointer, and the head of an empty value's chain.
type Address [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same input bytes produce different hashes in
// different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are protocol constants — changing
// them invalidates every existing address. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes, so the
// keys are readable in hex dumps without losing any cryptographic
// property (BLAKE3 keyed mode treats the key as opaque).
var (
	padDomainKey = domainKey{
		'p', 'a', 'd', 'k', 'v', '.', 'p', 'a', 'd', 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	keyNameDomainKey = domainKey{
		'p', 'a', 'd', 'k', 'v', '.', 'k', 'e', 'y', '.', 'n', 'a', 'm', 'e', 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// AddressOf computes the pad-domain BLAKE3 keyed hash of an encoded
// pad. This is the address chunks are stored under on the network.
func AddressOf(encoded []byte) Address {
	return Address(keyedHash(padDomainKey, encoded))
}

// HashKeyName computes the key-name-domain BLAKE3 keyed hash of a user
// key, hex-encoded. Used to derive filesystem-safe paths for per-key
// records; a dedicated domain prevents collisions with pad addresses.
func HashKeyName(key string) string {
	digest := keyedHash(keyNameDomainKey, []byte(key))
	return hex.EncodeToString(digest[:])
}

// IsZero reports whether a is the zero Address (no pad).
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the hex encoding of the address. This is the
// canonical format used in records, logs, and CLI output.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the abbreviated display form: "pad-" followed by the
// first 12 hex characters.
func (a Address) Short() string {
	return "pad-" + hex.EncodeToString(a[:6])
}

// ParseAddress parses a 64-character hex string into an Address.
func ParseAddress(hexString string) (Address, error) {
	var addr Address
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return addr, fmt.Errorf("parsing pad address: %w", err)
	}
	if len(decoded) != 32 {
		return addr, fmt.Errorf("pad address is %d bytes, want 32", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// keyedHash computes the BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) [32]byte {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// domainKey type rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("pad: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}
