// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package history implements the per-key append-only version log.
// Every successful write and removal appends an entry; entries are
// never rewritten, so the log is the durable record of what each key
// has pointed to over time and the authority for version numbers.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/padkv/padkv/lib/codec"
	"github.com/padkv/padkv/lib/pad"
)

// Log file format constants.
const (
	// Each record: length(4) + crc(4) + CBOR payload. The length covers
	// the payload only; the CRC32C covers the payload only. A record
	// whose length or CRC does not check out marks the end of the
	// usable log — everything before it is valid.
	recordHeaderSize = 8

	// maxRecordSize bounds a single history record. An entry is a
	// handful of fixed fields plus the key, so anything near this limit
	// means the length prefix is garbage.
	maxRecordSize = 4096
)

// crc32cTable is the CRC32C (Castagnoli) table for record checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// ErrVersionNotFound reports a lookup for a version a key's log does
// not contain.
var ErrVersionNotFound = errors.New("version not found")

// ErrNoHistory reports a lookup for a key with no history log at all.
var ErrNoHistory = errors.New("no history for key")

// Entry is one version in a key's history. Version numbers are
// assigned by Append, start at 1, and have no gaps. A tombstone entry
// records a removal: its head is the zero address and its size and pad
// count are zero.
type Entry struct {
	Key       string      `cbor:"key"`
	Version   uint64      `cbor:"version"`
	Head      pad.Address `cbor:"head"`
	Size      int64       `cbor:"size"`
	PadCount  int         `cbor:"pad_count"`
	Timestamp time.Time   `cbor:"timestamp"`
	Tombstone bool        `cbor:"tombstone,omitempty"`
}

// Log manages per-key history files under a root directory.
//
// On-disk layout:
//
//	<root>/<hash[:2]>/<hash[2:4]>/<hash>.log
//
// where hash is the BLAKE3 keyed hash of the key name, the same
// sharding as the pointer store. Each file is a sequence of
// CRC-framed CBOR records, appended and fsynced on every write.
//
// Log is safe for concurrent use; appends to the same key serialize
// through a single mutex. The in-memory latest-version map is built
// lazily, replaying a key's file on first touch.
type Log struct {
	root string

	mu     sync.Mutex
	latest map[string]uint64 // key → highest version seen
}

// NewLog creates a Log rooted at the given directory.
func NewLog(root string) (*Log, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory %s: %w", root, err)
	}
	return &Log{
		root:   root,
		latest: make(map[string]uint64),
	}, nil
}

// Append writes a new entry to the key's history and returns it with
// its assigned version. The record is fsynced before Append returns:
// once a caller sees a version number, that version survives a crash.
func (l *Log) Append(key string, head pad.Address, size int64, padCount int, tombstone bool, now time.Time) (Entry, error) {
	if key == "" {
		return Entry{}, fmt.Errorf("key is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	version, err := l.latestLocked(key)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Key:       key,
		Version:   version + 1,
		Head:      head,
		Size:      size,
		PadCount:  padCount,
		Timestamp: now,
		Tombstone: tombstone,
	}

	framed, err := encodeRecord(entry)
	if err != nil {
		return Entry{}, err
	}

	path := l.logPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating history shard directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("opening history log for %q: %w", key, err)
	}
	defer file.Close()

	if _, err := file.Write(framed); err != nil {
		return Entry{}, fmt.Errorf("appending history record for %q: %w", key, err)
	}
	if err := file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("syncing history log for %q: %w", key, err)
	}

	l.latest[key] = entry.Version
	return entry, nil
}

// List returns a key's history, oldest first. A key that has never
// been written returns ErrNoHistory.
func (l *Log) List(key string) ([]Entry, error) {
	entries, _, err := l.replay(key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("history for %q: %w", key, ErrNoHistory)
	}
	return entries, nil
}

// GetVersion returns one entry of a key's history.
func (l *Log) GetVersion(key string, version uint64) (Entry, error) {
	entries, _, err := l.replay(key)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("history for %q: %w", key, ErrNoHistory)
	}
	// Versions are gap-free from 1, so the entry for version v sits at
	// index v-1. Verify anyway: a truncated log tail may have dropped
	// trailing versions, and the check costs nothing.
	if version >= 1 && int(version) <= len(entries) && entries[version-1].Version == version {
		return entries[version-1], nil
	}
	return Entry{}, fmt.Errorf("version %d of %q: %w", version, key, ErrVersionNotFound)
}

// Latest returns the most recent entry of a key's history.
func (l *Log) Latest(key string) (Entry, error) {
	entries, _, err := l.replay(key)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("history for %q: %w", key, ErrNoHistory)
	}
	return entries[len(entries)-1], nil
}

// latestLocked returns the highest version recorded for key, replaying
// the key's file on first touch. Zero means the key has no history.
// The first touch also repairs a damaged tail: the file is truncated
// to its valid prefix, so the next append lands directly after the
// last good record instead of behind unreachable garbage.
// Must be called with l.mu held.
func (l *Log) latestLocked(key string) (uint64, error) {
	if version, cached := l.latest[key]; cached {
		return version, nil
	}

	entries, validLen, err := l.replay(key)
	if err != nil {
		return 0, err
	}
	if err := l.truncateDamage(key, validLen); err != nil {
		return 0, err
	}

	var version uint64
	if len(entries) > 0 {
		version = entries[len(entries)-1].Version
	}
	l.latest[key] = version
	return version, nil
}

// truncateDamage cuts everything past the valid prefix off the key's
// history file. O_APPEND writes land at the end of the file, so a
// record appended behind a damaged frame would be invisible to replay
// forever.
func (l *Log) truncateDamage(key string, validLen int64) error {
	path := l.logPath(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking history log for %q: %w", key, err)
	}
	if info.Size() <= validLen {
		return nil
	}
	if err := os.Truncate(path, validLen); err != nil {
		return fmt.Errorf("truncating damaged history tail for %q: %w", key, err)
	}
	return nil
}

// replay reads a key's history file and decodes every valid record.
// A corrupt or truncated record ends the replay: everything before it
// is returned, everything at and after it is ignored. The second
// return value is the byte length of the valid prefix. A missing file
// is an empty history, not an error.
func (l *Log) replay(key string) ([]Entry, int64, error) {
	data, err := os.ReadFile(l.logPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading history log for %q: %w", key, err)
	}

	var entries []Entry
	offset := 0
	for offset+recordHeaderSize <= len(data) {
		length := binary.LittleEndian.Uint32(data[offset : offset+4])
		expectedCRC := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		if length == 0 || length > maxRecordSize {
			break
		}
		end := offset + recordHeaderSize + int(length)
		if end > len(data) {
			break
		}

		payload := data[offset+recordHeaderSize : end]
		if crc32.Checksum(payload, crc32cTable) != expectedCRC {
			break
		}

		var entry Entry
		if err := codec.Unmarshal(payload, &entry); err != nil {
			break
		}

		entries = append(entries, entry)
		offset = end
	}
	return entries, int64(offset), nil
}

// encodeRecord frames an entry for appending: length, CRC32C, payload.
func encodeRecord(entry Entry) ([]byte, error) {
	payload, err := codec.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding history entry: %w", err)
	}
	if len(payload) > maxRecordSize {
		return nil, fmt.Errorf("history entry is %d bytes, maximum is %d", len(payload), maxRecordSize)
	}

	framed := make([]byte, recordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(framed[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(framed[4:8], crc32.Checksum(payload, crc32cTable))
	copy(framed[recordHeaderSize:], payload)
	return framed, nil
}

// logPath returns the sharded filesystem path for a key's history
// file.
func (l *Log) logPath(key string) string {
	hexString := pad.HashKeyName(key)
	return filepath.Join(l.root, hexString[:2], hexString[2:4], hexString+".log")
}
