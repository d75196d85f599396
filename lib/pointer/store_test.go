// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package pointer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/padkv/padkv/lib/pad"
)

func addrOf(content string) pad.Address {
	return pad.AddressOf([]byte(content))
}

func TestStorePutAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	head := addrOf("chain head")
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.Put("docs/readme", head, 1234, 3, nil, false, now); err != nil {
		t.Fatal(err)
	}

	record, err := store.Get("docs/readme")
	if err != nil {
		t.Fatal(err)
	}
	if record.Head != head {
		t.Error("head mismatch")
	}
	if record.Size != 1234 || record.PadCount != 3 {
		t.Errorf("size/pads = %d/%d, want 1234/3", record.Size, record.PadCount)
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now) {
		t.Error("timestamps not set on create")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get("absent"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("error = %v, want ErrKeyNotFound", err)
	}
}

func TestStoreCompareAndSwap(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first := addrOf("v1")
	second := addrOf("v2")
	wrong := addrOf("stale")
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	if _, err := store.Put("cas/key", first, 10, 1, nil, false, now); err != nil {
		t.Fatal(err)
	}

	// Swap with the correct expected head succeeds.
	record, err := store.Put("cas/key", second, 20, 1, &first, false, later)
	if err != nil {
		t.Fatal(err)
	}
	if !record.CreatedAt.Equal(now) {
		t.Error("update changed created_at")
	}
	if !record.UpdatedAt.Equal(later) {
		t.Error("update did not refresh updated_at")
	}

	// Swap with a stale expected head fails with a ConflictError
	// carrying the current head.
	_, err = store.Put("cas/key", addrOf("v3"), 30, 1, &wrong, false, later)
	if !IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) && conflict.Current != second {
		t.Error("conflict error does not carry the current head")
	}

	// A nil expected head on an existing key also conflicts.
	if _, err := store.Put("cas/key", addrOf("v4"), 40, 1, nil, false, later); !IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestStoreForcePut(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.Put("k", addrOf("v1"), 1, 1, nil, false, now); err != nil {
		t.Fatal(err)
	}
	// Force ignores expected-previous entirely.
	if _, err := store.Put("k", addrOf("v2"), 2, 1, nil, true, now); err != nil {
		t.Fatal(err)
	}

	record, err := store.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if record.Head != addrOf("v2") {
		t.Error("force put did not update the head")
	}
}

func TestStoreRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.Put("doomed", addrOf("v"), 1, 1, nil, false, now); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("doomed"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("doomed"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatal("key still present after remove")
	}
	if err := store.Remove("doomed"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("second remove error = %v, want ErrKeyNotFound", err)
	}
}

func TestStoreListPrefix(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for _, key := range []string{"a/1", "a/2", "b/1"} {
		if _, err := store.Put(key, addrOf(key), 1, 1, nil, false, now); err != nil {
			t.Fatal(err)
		}
	}

	all := store.List("")
	if len(all) != 3 {
		t.Fatalf("List(\"\") returned %d records, want 3", len(all))
	}
	// Sorted by key.
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Error("list is not sorted by key")
		}
	}

	filtered := store.List("a/")
	if len(filtered) != 2 {
		t.Fatalf("List(\"a/\") returned %d records, want 2", len(filtered))
	}
}

func TestStoreReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put("persisted/key", addrOf("v"), 77, 2, nil, false, now); err != nil {
		t.Fatal(err)
	}

	// A second store over the same directory sees the record.
	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	record, err := reopened.Get("persisted/key")
	if err != nil {
		t.Fatal(err)
	}
	if record.Size != 77 || record.PadCount != 2 {
		t.Error("record did not survive reload")
	}
}

func TestStoreRejectsOversizedKey(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	long := strings.Repeat("k", MaxKeyLength+1)
	if _, err := store.Put(long, addrOf("v"), 1, 1, nil, false, now); err == nil {
		t.Fatal("oversized key accepted")
	}
	if _, err := store.Put("", addrOf("v"), 1, 1, nil, false, now); err == nil {
		t.Fatal("empty key accepted")
	}
}
