// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package index implements the local write-through cache of key
// metadata: chain heads, pad address lists, and write state. The
// index is advisory — the pointer store and the network are the
// source of truth — so a corrupt journal is discarded, never repaired.
package index

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/padkv/padkv/lib/codec"
	"github.com/padkv/padkv/lib/pad"
)

// Journal format constants.
const (
	// Each record: length(4) + crc(4) + CBOR payload. The CRC32C
	// covers the payload. A record that fails either check ends the
	// replay; since the index is advisory, a failure mid-file discards
	// the whole journal and starts empty.
	recordHeaderSize = 8

	// maxRecordSize bounds a single journal record. The pad address
	// list dominates: 1 MiB covers a value of tens of gigabytes at the
	// default pad capacity.
	maxRecordSize = 1 << 20

	shardCount = 16
)

// crc32cTable is the CRC32C (Castagnoli) table for journal checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// State tracks where a key's most recent write stands.
type State uint8

const (
	// Clean: the cached metadata matches the committed pointer and all
	// pads are on the network.
	Clean State = iota
	// Dirty: a write is in flight. IntentHead and PadAddresses
	// describe the chain being uploaded; PriorHead is the committed
	// head the write intends to replace.
	Dirty
	// Committed: the pointer has been swapped to IntentHead but local
	// cleanup (unstaging) did not finish.
	Committed
	// Orphaned: a write was abandoned — its staged pads are garbage
	// and the committed pointer still holds PriorHead.
	Orphaned
)

// String returns the state name used in logs and CLI output.
func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Committed:
		return "committed"
	case Orphaned:
		return "orphaned"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Entry is the cached metadata for one key.
type Entry struct {
	Key          string        `cbor:"key"`
	Head         pad.Address   `cbor:"head"`
	Size         int64         `cbor:"size"`
	PadAddresses []pad.Address `cbor:"pad_addresses"`
	State        State         `cbor:"state"`
	IntentHead   pad.Address   `cbor:"intent_head,omitempty"`
	PriorHead    pad.Address   `cbor:"prior_head,omitempty"`
	UpdatedAt    time.Time     `cbor:"updated_at"`

	// Deleted marks a journal tombstone. Never set on entries returned
	// from the in-memory map.
	Deleted bool `cbor:"deleted,omitempty"`
}

// Index is a sharded in-memory map of key metadata backed by an
// append-only journal file. The journal is compacted when stale
// records outnumber live entries two to one.
//
// Reads take only the shard's read lock. Writes take the shard lock
// and then the journal lock, so concurrent writers to different keys
// contend only on the file append.
type Index struct {
	shards [shardCount]indexShard

	journalMu    sync.Mutex
	journalFile  *os.File
	journalPath  string
	totalRecords int // records in the journal, including stale
}

type indexShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Open loads the index journal at path, creating it if missing. A
// corrupt journal is truncated and the index starts empty — callers
// repopulate it lazily from the pointer store and chain walks.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx := &Index{journalPath: path}
	for i := range idx.shards {
		idx.shards[i].entries = make(map[string]Entry)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading index journal %s: %w", path, err)
	}

	replayed, ok := replayJournal(data)
	if !ok {
		// Corrupt journal. The index is a cache, so drop it.
		replayed = nil
	}
	for _, entry := range replayed {
		shard := idx.shard(entry.Key)
		if entry.Deleted {
			delete(shard.entries, entry.Key)
		} else {
			shard.entries[entry.Key] = entry
		}
	}
	idx.totalRecords = len(replayed)

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !ok {
		flags |= os.O_TRUNC
		idx.totalRecords = 0
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening index journal %s: %w", path, err)
	}
	idx.journalFile = file

	return idx, nil
}

// Get returns the cached entry for a key.
func (idx *Index) Get(key string) (Entry, bool) {
	shard := idx.shard(key)
	shard.mu.RLock()
	entry, found := shard.entries[key]
	shard.mu.RUnlock()
	return entry, found
}

// Put upserts a key's entry and appends it to the journal. The
// entry's Deleted flag must be false.
func (idx *Index) Put(entry Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("index entry key is required")
	}
	entry.Deleted = false

	shard := idx.shard(entry.Key)
	shard.mu.Lock()
	shard.entries[entry.Key] = entry
	shard.mu.Unlock()

	return idx.appendRecord(entry)
}

// Invalidate drops a key's cached entry and journals a tombstone.
// Invalidating an absent key is a no-op.
func (idx *Index) Invalidate(key string) error {
	shard := idx.shard(key)
	shard.mu.Lock()
	_, found := shard.entries[key]
	delete(shard.entries, key)
	shard.mu.Unlock()

	if !found {
		return nil
	}
	return idx.appendRecord(Entry{Key: key, Deleted: true})
}

// MarkDirty records write intent for a key before any pad reaches the
// network: the chain being built, its head, and the committed head it
// intends to replace. Sync uses this record to resume or abandon the
// write after a crash.
func (idx *Index) MarkDirty(key string, intentHead, priorHead pad.Address, addrs []pad.Address, size int64, now time.Time) error {
	return idx.Put(Entry{
		Key:          key,
		Head:         priorHead,
		Size:         size,
		PadAddresses: addrs,
		State:        Dirty,
		IntentHead:   intentHead,
		PriorHead:    priorHead,
		UpdatedAt:    now,
	})
}

// MarkCommitted moves a dirty key past its commit point: the pointer
// now holds IntentHead, only local cleanup remains.
func (idx *Index) MarkCommitted(key string, now time.Time) error {
	entry, found := idx.Get(key)
	if !found {
		return fmt.Errorf("marking %q committed: no index entry", key)
	}
	entry.Head = entry.IntentHead
	entry.State = Committed
	entry.UpdatedAt = now
	return idx.Put(entry)
}

// MarkClean finalizes a key: the write is fully settled and the
// cached address list is authoritative for reads.
func (idx *Index) MarkClean(key string, now time.Time) error {
	entry, found := idx.Get(key)
	if !found {
		return fmt.Errorf("marking %q clean: no index entry", key)
	}
	if !entry.IntentHead.IsZero() {
		entry.Head = entry.IntentHead
	}
	entry.State = Clean
	entry.IntentHead = pad.Address{}
	entry.PriorHead = pad.Address{}
	entry.UpdatedAt = now
	return idx.Put(entry)
}

// MarkOrphaned records that a key's in-flight write was abandoned.
// The entry keeps its staged address list so sync can discard the
// staged pads.
func (idx *Index) MarkOrphaned(key string, now time.Time) error {
	entry, found := idx.Get(key)
	if !found {
		return fmt.Errorf("marking %q orphaned: no index entry", key)
	}
	entry.State = Orphaned
	entry.UpdatedAt = now
	return idx.Put(entry)
}

// Entries returns all cached entries, sorted by key.
func (idx *Index) Entries() []Entry {
	var results []Entry
	for i := range idx.shards {
		shard := &idx.shards[i]
		shard.mu.RLock()
		for _, entry := range shard.entries {
			results = append(results, entry)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// Pending returns all entries whose write state needs reconciliation
// (Dirty, Committed, or Orphaned), sorted by key.
func (idx *Index) Pending() []Entry {
	var results []Entry
	for _, entry := range idx.Entries() {
		if entry.State != Clean {
			results = append(results, entry)
		}
	}
	return results
}

// Len returns the number of live entries.
func (idx *Index) Len() int {
	total := 0
	for i := range idx.shards {
		shard := &idx.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// NeedsCompaction reports whether the journal has grown much larger
// than the live entry set (more than 2x the live entries).
func (idx *Index) NeedsCompaction() bool {
	idx.journalMu.Lock()
	total := idx.totalRecords
	idx.journalMu.Unlock()

	live := idx.Len()
	return live > 0 && total > 2*live
}

// Compact writes a fresh journal containing only live entries, then
// atomically replaces the old file.
func (idx *Index) Compact() error {
	// Snapshot first so shard locks are not held during file I/O.
	live := idx.Entries()

	idx.journalMu.Lock()
	defer idx.journalMu.Unlock()

	tmpPath := idx.journalPath + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp index journal: %w", err)
	}

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	for _, entry := range live {
		framed, err := encodeRecord(entry)
		if err != nil {
			return err
		}
		if _, err := tmpFile.Write(framed); err != nil {
			return fmt.Errorf("writing compacted index record: %w", err)
		}
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temp index journal: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp index journal: %w", err)
	}

	if err := os.Rename(tmpPath, idx.journalPath); err != nil {
		return fmt.Errorf("renaming temp index journal: %w", err)
	}

	newFile, err := os.OpenFile(idx.journalPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopening compacted index journal: %w", err)
	}

	idx.journalFile.Close()
	idx.journalFile = newFile
	idx.totalRecords = len(live)

	success = true
	return nil
}

// Close compacts the journal and closes the file.
func (idx *Index) Close() error {
	if idx.NeedsCompaction() {
		if err := idx.Compact(); err != nil {
			return fmt.Errorf("compacting index on close: %w", err)
		}
	}

	idx.journalMu.Lock()
	defer idx.journalMu.Unlock()

	if idx.journalFile != nil {
		if err := idx.journalFile.Close(); err != nil {
			return fmt.Errorf("closing index journal: %w", err)
		}
		idx.journalFile = nil
	}
	return nil
}

// shard returns the shard for a key.
func (idx *Index) shard(key string) *indexShard {
	digest := crc32.Checksum([]byte(key), crc32cTable)
	return &idx.shards[digest%shardCount]
}

// appendRecord frames and appends one record to the journal.
func (idx *Index) appendRecord(entry Entry) error {
	framed, err := encodeRecord(entry)
	if err != nil {
		return err
	}

	idx.journalMu.Lock()
	defer idx.journalMu.Unlock()

	if idx.journalFile == nil {
		return fmt.Errorf("index journal is closed")
	}
	if _, err := idx.journalFile.Write(framed); err != nil {
		return fmt.Errorf("appending index record: %w", err)
	}
	idx.totalRecords++
	return nil
}

// encodeRecord frames an entry: length, CRC32C, CBOR payload.
func encodeRecord(entry Entry) ([]byte, error) {
	payload, err := codec.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding index entry: %w", err)
	}
	if len(payload) > maxRecordSize {
		return nil, fmt.Errorf("index entry is %d bytes, maximum is %d", len(payload), maxRecordSize)
	}

	framed := make([]byte, recordHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(framed[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(framed[4:8], crc32.Checksum(payload, crc32cTable))
	copy(framed[recordHeaderSize:], payload)
	return framed, nil
}

// replayJournal decodes all records. ok is false when the journal is
// corrupt anywhere — partial replay of a cache is not worth the
// complication, the caller starts empty instead.
func replayJournal(data []byte) (entries []Entry, ok bool) {
	offset := 0
	for offset < len(data) {
		if offset+recordHeaderSize > len(data) {
			return nil, false
		}
		length := binary.LittleEndian.Uint32(data[offset : offset+4])
		expectedCRC := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		if length == 0 || length > maxRecordSize {
			return nil, false
		}
		end := offset + recordHeaderSize + int(length)
		if end > len(data) {
			return nil, false
		}

		payload := data[offset+recordHeaderSize : end]
		if crc32.Checksum(payload, crc32cTable) != expectedCRC {
			return nil, false
		}

		var entry Entry
		if err := codec.Unmarshal(payload, &entry); err != nil {
			return nil, false
		}

		entries = append(entries, entry)
		offset = end
	}
	return entries, true
}
