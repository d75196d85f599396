// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package chain splits values into linked chains of pads and
// reassembles them. Chunking is deterministic: a value of length L
// with pad capacity C always produces ceil(L/C) pads with identical
// boundaries, and therefore identical addresses, on every machine.
//
// A chain is built back to front: the terminal pad must be encoded
// first because every other pad embeds the address of its successor.
// Content addressing makes chains acyclic by construction — a pad
// cannot reference an address that did not exist when it was encoded.
package chain

import (
	"fmt"

	"github.com/padkv/padkv/lib/pad"
)

// EncodedPad is one fully encoded pad of a planned chain, ready for
// upload.
type EncodedPad struct {
	// Address is the pad's content address.
	Address pad.Address

	// Bytes is the encoded pad as it will be stored on the network.
	Bytes []byte
}

// Plan is a chain laid out in memory but not necessarily uploaded.
// Planning is separated from uploading so the caller can record the
// write intent (head and pad addresses) durably before the first
// network operation — the crash-recovery contract depends on the
// intent existing before any pad does.
type Plan struct {
	// Head is the address of the first pad, or the zero Address for
	// an empty value.
	Head pad.Address

	// Pads holds the encoded pads in chain order (head first).
	Pads []EncodedPad

	// Size is the value's byte length.
	Size int64
}

// Addresses returns the pad addresses in chain order.
func (p *Plan) Addresses() []pad.Address {
	addrs := make([]pad.Address, len(p.Pads))
	for i, encoded := range p.Pads {
		addrs[i] = encoded.Address
	}
	return addrs
}

// NewPlan splits value into pads of at most capacity bytes and
// encodes the full chain. capacity <= 0 falls back to
// pad.DefaultCapacity. An empty value produces a plan with no pads
// and a zero head.
func NewPlan(value []byte, capacity int, compression pad.CompressionTag) (*Plan, error) {
	if capacity <= 0 {
		capacity = pad.DefaultCapacity
	}

	if len(value) == 0 {
		return &Plan{Size: 0}, nil
	}

	padCount := (len(value) + capacity - 1) / capacity
	encoded := make([]EncodedPad, padCount)

	// Encode back to front so each pad can embed its successor's
	// address.
	var next pad.Address
	for i := padCount - 1; i >= 0; i-- {
		start := i * capacity
		end := start + capacity
		if end > len(value) {
			end = len(value)
		}

		p := &pad.Pad{
			Payload:  value[start:end],
			Sequence: uint32(i),
			Next:     next,
			Terminal: i == padCount-1,
		}
		if p.Terminal {
			p.ValueLen = uint64(len(value))
		}

		bytes, addr, err := pad.Encode(p, compression)
		if err != nil {
			return nil, fmt.Errorf("encoding pad %d of %d: %w", i, padCount, err)
		}
		encoded[i] = EncodedPad{Address: addr, Bytes: bytes}
		next = addr
	}

	return &Plan{
		Head: encoded[0].Address,
		Pads: encoded,
		Size: int64(len(value)),
	}, nil
}
