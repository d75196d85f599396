// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package pad implements the content-addressed storage unit of the
// network: the pad. A value larger than one pad's capacity is split
// into a singly linked chain of pads; each pad carries its position
// in the chain, the address of the next pad, and — on the terminal
// pad — the total value length, so trailing zero bytes in user data
// are never mistaken for padding.
//
// Pads are immutable. A pad's address is the BLAKE3 keyed hash of its
// encoded bytes, so any mutation produces a different address and
// decoding always verifies integrity against the claimed address.
package pad

import (
	"encoding/binary"
	"fmt"
)

// Encoding constants. These are protocol constants — changing them
// invalidates every pad already written to the network.
const (
	// padMagic marks the start of an encoded pad.
	padMagic = "PKV1"

	// padVersion is the encoding version accepted by this code.
	padVersion = 1

	// headerSize is the fixed encoded header length:
	// magic(4) + version(1) + compression(1) + flags(1) + reserved(1) +
	// sequence(4) + storedLen(4) + rawLen(4) + valueLen(8) + next(32).
	headerSize = 60

	// flagTerminal marks the last pad of a chain. Only terminal pads
	// carry a meaningful value length.
	flagTerminal = 1 << 0
)

// DefaultCapacity is the default maximum payload bytes per pad.
const DefaultCapacity = 64 * 1024

// Pad is one decoded unit of a value's chain.
type Pad struct {
	// Payload is the uncompressed slice of the value carried by this
	// pad.
	Payload []byte

	// Sequence is the pad's zero-based position within its chain.
	Sequence uint32

	// Next is the address of the following pad, or the zero Address
	// on the terminal pad.
	Next Address

	// Terminal reports whether this is the last pad of its chain.
	Terminal bool

	// ValueLen is the total byte length of the whole value. Only set
	// on the terminal pad; zero elsewhere.
	ValueLen uint64

	// Compression is the algorithm the payload was stored with. Set
	// by Decode; ignored by Encode, which picks its own tag.
	Compression CompressionTag
}

// Encode serializes the pad with the requested compression and
// returns the encoded bytes together with their content address.
// Incompressible payloads are stored uncompressed regardless of the
// requested tag.
func Encode(p *Pad, compression CompressionTag) ([]byte, Address, error) {
	stored, actualTag, err := compressWithFallback(p.Payload, compression)
	if err != nil {
		return nil, Address{}, fmt.Errorf("compressing pad payload: %w", err)
	}

	encoded := make([]byte, headerSize+len(stored))
	copy(encoded[0:4], padMagic)
	encoded[4] = padVersion
	encoded[5] = byte(actualTag)
	if p.Terminal {
		encoded[6] |= flagTerminal
	}
	binary.LittleEndian.PutUint32(encoded[8:12], p.Sequence)
	binary.LittleEndian.PutUint32(encoded[12:16], uint32(len(stored)))
	binary.LittleEndian.PutUint32(encoded[16:20], uint32(len(p.Payload)))
	binary.LittleEndian.PutUint64(encoded[20:28], p.ValueLen)
	copy(encoded[28:60], p.Next[:])
	copy(encoded[headerSize:], stored)

	return encoded, AddressOf(encoded), nil
}

// Decode parses an encoded pad fetched from the network. The claimed
// address is verified against the re-hashed bytes before anything
// else, so tampered or misfiled chunks are rejected rather than
// decoded.
func Decode(encoded []byte, claimed Address) (*Pad, error) {
	if AddressOf(encoded) != claimed {
		return nil, fmt.Errorf("pad content does not match address %s", claimed.Short())
	}
	if len(encoded) < headerSize {
		return nil, fmt.Errorf("encoded pad is %d bytes, want at least %d", len(encoded), headerSize)
	}
	if string(encoded[0:4]) != padMagic {
		return nil, fmt.Errorf("invalid pad magic %q", encoded[0:4])
	}
	if encoded[4] != padVersion {
		return nil, fmt.Errorf("unsupported pad version %d (this code supports %d)", encoded[4], padVersion)
	}

	tag := CompressionTag(encoded[5])
	terminal := encoded[6]&flagTerminal != 0
	sequence := binary.LittleEndian.Uint32(encoded[8:12])
	storedLen := binary.LittleEndian.Uint32(encoded[12:16])
	rawLen := binary.LittleEndian.Uint32(encoded[16:20])
	valueLen := binary.LittleEndian.Uint64(encoded[20:28])

	var next Address
	copy(next[:], encoded[28:60])

	if int(storedLen) != len(encoded)-headerSize {
		return nil, fmt.Errorf("pad payload is %d bytes, header declares %d",
			len(encoded)-headerSize, storedLen)
	}

	payload, err := decompress(encoded[headerSize:], tag, int(rawLen))
	if err != nil {
		return nil, fmt.Errorf("decoding pad payload: %w", err)
	}

	return &Pad{
		Payload:     payload,
		Sequence:    sequence,
		Next:        next,
		Terminal:    terminal,
		ValueLen:    valueLen,
		Compression: tag,
	}, nil
}
