// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package netstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/padkv/padkv/lib/clock"
	"github.com/padkv/padkv/lib/pad"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryPutGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	data := []byte("chunk content")
	addr, err := store.PutChunk(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if addr != pad.AddressOf(data) {
		t.Error("put returned a non-content address")
	}

	fetched, err := store.GetChunk(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fetched, data) {
		t.Error("fetched chunk differs from stored chunk")
	}

	// The returned slice is a copy.
	fetched[0] ^= 0xFF
	again, err := store.GetChunk(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Error("mutating a fetched chunk changed the store")
	}
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemory()

	var addr pad.Address
	addr[0] = 0x42
	if _, err := store.GetChunk(context.Background(), addr); !errors.Is(err, ErrChunkNotFound) {
		t.Fatalf("error = %v, want ErrChunkNotFound", err)
	}
}

func TestDiskPutGet(t *testing.T) {
	store, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	data := []byte("disk chunk")
	addr, err := store.PutChunk(ctx, data)
	if err != nil {
		t.Fatal(err)
	}

	// Second put of the same content is a dedup no-op.
	again, err := store.PutChunk(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	if again != addr {
		t.Error("duplicate put returned a different address")
	}

	fetched, err := store.GetChunk(ctx, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fetched, data) {
		t.Error("fetched chunk differs from stored chunk")
	}
}

func TestDiskRemove(t *testing.T) {
	store, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	addr, err := store.PutChunk(ctx, []byte("ephemeral"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(addr); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetChunk(ctx, addr); !errors.Is(err, ErrChunkNotFound) {
		t.Fatalf("error after remove = %v, want ErrChunkNotFound", err)
	}

	// Removing an absent chunk is not an error.
	if err := store.Remove(addr); err != nil {
		t.Fatal(err)
	}
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	inner := NewMemory()
	inner.FailGets(func(attempt int) error {
		if attempt <= 2 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})

	store := NewRetrying(inner, 3, time.Millisecond, clock.Real(), testLogger())
	ctx := context.Background()

	addr, err := inner.PutChunk(ctx, []byte("flaky"))
	if err != nil {
		t.Fatal(err)
	}

	data, err := store.GetChunk(ctx, addr)
	if err != nil {
		t.Fatalf("retry did not recover: %v", err)
	}
	if !bytes.Equal(data, []byte("flaky")) {
		t.Error("wrong chunk after retry")
	}
}

func TestRetryingExhaustsBudget(t *testing.T) {
	inner := NewMemory()
	inner.FailPuts(func(attempt int) error {
		return fmt.Errorf("network down")
	})

	store := NewRetrying(inner, 3, time.Millisecond, clock.Real(), testLogger())

	_, err := store.PutChunk(context.Background(), []byte("doomed"))
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("error = %v, want ErrNetworkUnavailable", err)
	}
}

func TestRetryingDoesNotRetryNotFound(t *testing.T) {
	inner := NewMemory()
	store := NewRetrying(inner, 5, time.Millisecond, clock.Real(), testLogger())

	var addr pad.Address
	addr[1] = 0x07
	if _, err := store.GetChunk(context.Background(), addr); !errors.Is(err, ErrChunkNotFound) {
		t.Fatalf("error = %v, want ErrChunkNotFound", err)
	}

	// One underlying attempt, not five: a definitive miss must not
	// burn the retry budget.
	if inner.getAttempts != 1 {
		t.Errorf("underlying attempts = %d, want 1", inner.getAttempts)
	}
}
