// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/padkv/padkv/lib/pad"
)

func addrOf(content string) pad.Address {
	return pad.AddressOf([]byte(content))
}

func TestAppendAssignsGapFreeVersions(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := log.Append("k", addrOf("v1"), 100, 2, false, now)
	if err != nil {
		t.Fatal(err)
	}
	second, err := log.Append("k", addrOf("v2"), 200, 4, false, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	if first.Version != 1 || second.Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", first.Version, second.Version)
	}
}

func TestListOldestFirst(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		if _, err := log.Append("k", addrOf(string(rune('0'+i))), int64(i), 1, false, now); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := log.List("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("%d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.Version != uint64(i+1) {
			t.Errorf("entry %d has version %d", i, entry.Version)
		}
	}
}

func TestListMissingKey(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := log.List("never-written"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("error = %v, want ErrNoHistory", err)
	}
}

func TestGetVersion(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if _, err := log.Append("k", addrOf("v1"), 10, 1, false, now); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append("k", addrOf("v2"), 20, 1, false, now); err != nil {
		t.Fatal(err)
	}

	entry, err := log.GetVersion("k", 1)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Head != addrOf("v1") {
		t.Error("wrong head for version 1")
	}

	if _, err := log.GetVersion("k", 3); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("error = %v, want ErrVersionNotFound", err)
	}
	if _, err := log.GetVersion("k", 0); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("version 0 error = %v, want ErrVersionNotFound", err)
	}
}

func TestTombstone(t *testing.T) {
	log, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if _, err := log.Append("k", addrOf("v1"), 10, 1, false, now); err != nil {
		t.Fatal(err)
	}
	tomb, err := log.Append("k", pad.Address{}, 0, 0, true, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if tomb.Version != 2 || !tomb.Tombstone {
		t.Error("tombstone entry malformed")
	}

	latest, err := log.Latest("k")
	if err != nil {
		t.Fatal(err)
	}
	if !latest.Tombstone {
		t.Error("latest entry is not the tombstone")
	}
}

func TestVersionsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	log, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append("k", addrOf("v1"), 10, 1, false, now); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	entry, err := reopened.Append("k", addrOf("v2"), 20, 1, false, now)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Version != 2 {
		t.Errorf("version after reopen = %d, want 2", entry.Version)
	}
}

func TestCorruptTailStopsReplay(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	log, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append("k", addrOf("v1"), 10, 1, false, now); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append("k", addrOf("v2"), 20, 1, false, now); err != nil {
		t.Fatal(err)
	}

	// Corrupt the tail: flip a byte in the last record's payload.
	path := log.logPath("k")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := reopened.List("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("replay returned %d entries, want 1 (corrupt tail dropped)", len(entries))
	}
	if entries[0].Version != 1 {
		t.Error("surviving entry is not version 1")
	}

	// The next append continues from the last valid version, and the
	// damaged tail is cut off so the new record is actually reachable.
	entry, err := reopened.Append("k", addrOf("v3"), 30, 1, false, now)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Version != 2 {
		t.Errorf("version after corrupt tail = %d, want 2", entry.Version)
	}

	entries, err = reopened.List("k")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("%d entries after append over corrupt tail, want 2", len(entries))
	}
	got, err := reopened.GetVersion("k", 2)
	if err != nil {
		t.Fatalf("appended version unreadable: %v", err)
	}
	if got.Head != addrOf("v3") {
		t.Error("version 2 does not carry the appended head")
	}

	// And the repaired log holds across another reopen: version numbers
	// stay gap-free and monotonic.
	again, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	latest, err := again.Latest("k")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version != 2 || latest.Head != addrOf("v3") {
		t.Errorf("latest after reopen = %+v, want version 2 at v3's head", latest)
	}
	next, err := again.Append("k", addrOf("v4"), 40, 1, false, now)
	if err != nil {
		t.Fatal(err)
	}
	if next.Version != 3 {
		t.Errorf("next version = %d, want 3", next.Version)
	}
}

func TestHistoryFilesAreSharded(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLog(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := log.Append("some/key", addrOf("v"), 1, 1, false, time.Now()); err != nil {
		t.Fatal(err)
	}

	hexString := pad.HashKeyName("some/key")
	expected := filepath.Join(dir, hexString[:2], hexString[2:4], hexString+".log")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("history file not at sharded path: %v", err)
	}
}
