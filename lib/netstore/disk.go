// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package netstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/padkv/padkv/lib/pad"
)

// Disk is a Network backed by a local directory. It serves two roles:
// a standalone backend for single-machine use, and the staging area
// where in-flight chain writes park their encoded pads so an
// interrupted upload can be resumed after a crash.
//
// Chunks are sharded by the first two bytes of the address hex:
// <root>/a3/f9/a3f9b2c1e7d4... Writes go through a temp file and an
// atomic rename, so a crash never leaves a partially written chunk
// under its final name.
type Disk struct {
	root string
}

// NewDisk creates a Disk store rooted at the given directory,
// creating it if needed.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("creating chunk store directory: %w", err)
	}
	return &Disk{root: root}, nil
}

// PutChunk writes data under its content address via atomic rename.
// Re-putting an existing chunk is a no-op: content addressing makes
// the existing file identical by construction.
func (d *Disk) PutChunk(ctx context.Context, data []byte) (pad.Address, error) {
	if err := ctx.Err(); err != nil {
		return pad.Address{}, err
	}

	addr := pad.AddressOf(data)
	finalPath := d.chunkPath(addr)

	if _, err := os.Stat(finalPath); err == nil {
		return addr, nil
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return pad.Address{}, fmt.Errorf("creating chunk shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(d.root, "tmp"), "chunk-*.bin")
	if err != nil {
		return pad.Address{}, fmt.Errorf("creating temp chunk file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return pad.Address{}, fmt.Errorf("writing chunk data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return pad.Address{}, fmt.Errorf("closing temp chunk file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return pad.Address{}, fmt.Errorf("renaming chunk to %s: %w", finalPath, err)
	}

	success = true
	return addr, nil
}

// GetChunk reads the chunk stored under addr.
func (d *Disk) GetChunk(ctx context.Context, addr pad.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.chunkPath(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChunkNotFound
		}
		return nil, fmt.Errorf("reading chunk %s: %w", addr.Short(), err)
	}
	return data, nil
}

// Remove deletes a chunk from disk. Used by the staging store to
// clear pads once their chain has been committed; a real network has
// no delete.
func (d *Disk) Remove(addr pad.Address) error {
	if err := os.Remove(d.chunkPath(addr)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing chunk %s: %w", addr.Short(), err)
	}
	return nil
}

// chunkPath returns the sharded filesystem path for a chunk.
func (d *Disk) chunkPath(addr pad.Address) string {
	hexString := addr.String()
	return filepath.Join(d.root, hexString[:2], hexString[2:4], hexString)
}
