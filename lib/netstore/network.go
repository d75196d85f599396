// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package netstore defines the narrow interface to the pad network —
// an append-only store of immutable, content-addressed chunks — and
// provides local implementations plus a retrying wrapper for
// transient failures.
//
// The network offers exactly two primitives: put a chunk (idempotent,
// the address is derived from the content) and get a chunk by
// address. There is no update and no delete; mutability is built
// above this layer by repointing heads.
package netstore

import (
	"context"
	"errors"

	"github.com/padkv/padkv/lib/pad"
)

// ErrChunkNotFound is returned by GetChunk when no chunk is stored
// under the requested address. It is a permanent outcome for that
// address at that moment, not a transient failure.
var ErrChunkNotFound = errors.New("netstore: chunk not found")

// ErrNetworkUnavailable is returned by the retrying wrapper after all
// attempts at a transient failure are exhausted.
var ErrNetworkUnavailable = errors.New("netstore: network unavailable")

// Network is the pad network as seen by this module.
type Network interface {
	// PutChunk stores data and returns its content address. Putting
	// the same bytes twice is a no-op returning the same address.
	PutChunk(ctx context.Context, data []byte) (pad.Address, error)

	// GetChunk returns the chunk stored under addr, or
	// ErrChunkNotFound.
	GetChunk(ctx context.Context, addr pad.Address) ([]byte, error)
}
