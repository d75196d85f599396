// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package netstore

import (
	"context"
	"sync"

	"github.com/padkv/padkv/lib/pad"
)

// Memory is an in-process Network. It backs tests and offline use,
// and its fault injection hooks let sync-engine tests simulate
// partial writes and outages without a real network.
type Memory struct {
	mu     sync.RWMutex
	chunks map[pad.Address][]byte

	// putErr, when non-nil, is consulted before each PutChunk with
	// the attempt ordinal (1-based across the store's lifetime). A
	// non-nil return fails the put without storing.
	putErr func(attempt int) error

	// getErr mirrors putErr for GetChunk.
	getErr func(attempt int) error

	putAttempts int
	getAttempts int
}

// NewMemory creates an empty in-memory network.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[pad.Address][]byte)}
}

// FailPuts installs a fault hook consulted before every PutChunk.
// Pass nil to clear.
func (m *Memory) FailPuts(hook func(attempt int) error) {
	m.mu.Lock()
	m.putErr = hook
	m.mu.Unlock()
}

// FailGets installs a fault hook consulted before every GetChunk.
// Pass nil to clear.
func (m *Memory) FailGets(hook func(attempt int) error) {
	m.mu.Lock()
	m.getErr = hook
	m.mu.Unlock()
}

// PutChunk stores data under its content address.
func (m *Memory) PutChunk(ctx context.Context, data []byte) (pad.Address, error) {
	if err := ctx.Err(); err != nil {
		return pad.Address{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.putAttempts++
	if m.putErr != nil {
		if err := m.putErr(m.putAttempts); err != nil {
			return pad.Address{}, err
		}
	}

	addr := pad.AddressOf(data)
	if _, exists := m.chunks[addr]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.chunks[addr] = stored
	}
	return addr, nil
}

// GetChunk returns a copy of the chunk stored under addr.
func (m *Memory) GetChunk(ctx context.Context, addr pad.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.getAttempts++
	if m.getErr != nil {
		if err := m.getErr(m.getAttempts); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	data, exists := m.chunks[addr]
	m.mu.Unlock()

	if !exists {
		return nil, ErrChunkNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Drop removes a chunk, simulating network data loss. Returns true if
// the chunk existed.
func (m *Memory) Drop(addr pad.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.chunks[addr]
	delete(m.chunks, addr)
	return existed
}

// Has reports whether a chunk is stored under addr.
func (m *Memory) Has(addr pad.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.chunks[addr]
	return exists
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}
