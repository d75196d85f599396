// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package pointer implements the mutable key-to-chain-head mapping.
// Every other piece of the store is immutable and content-addressed;
// the pointer store is the single place where a name can be rebound,
// and its compare-and-swap update is the commit point for writes.
package pointer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/padkv/padkv/lib/codec"
	"github.com/padkv/padkv/lib/pad"
)

// MaxKeyLength is the maximum byte length of a key. Keys are
// hierarchical (e.g., "backups/db/2026-08-29") and this limit is
// generous enough for real use while preventing abuse.
const MaxKeyLength = 512

// ErrKeyNotFound reports a lookup for a key with no pointer record.
var ErrKeyNotFound = errors.New("key not found")

// ConflictError reports a compare-and-swap failure: the pointer moved
// between the caller's read and its write attempt.
type ConflictError struct {
	Key      string
	Current  pad.Address
	Expected pad.Address
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"pointer conflict: %q currently heads at %s, expected %s",
		e.Key, e.Current.Short(), e.Expected.Short(),
	)
}

// IsConflict reports whether err is a compare-and-swap failure.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// Record holds the on-disk and in-memory representation of a single
// key's pointer. Each pointer file on disk contains a CBOR-encoded
// Record.
type Record struct {
	Key       string      `cbor:"key"`
	Head      pad.Address `cbor:"head"`
	Size      int64       `cbor:"size"`
	PadCount  int         `cbor:"pad_count"`
	CreatedAt time.Time   `cbor:"created_at"`
	UpdatedAt time.Time   `cbor:"updated_at"`
}

// Store manages mutable key-to-head mappings with an in-memory index
// backed by per-key CBOR files on disk. Keys can contain slashes, so
// the store hashes each key to produce a filesystem-safe path.
//
// On-disk layout:
//
//	<root>/<hash[:2]>/<hash[2:4]>/<hash>.cbor
//
// where hash is the BLAKE3 keyed hash of the key name. Each CBOR file
// contains the original key, enabling reconstruction of the in-memory
// map from a directory scan.
//
// Store is safe for concurrent use. Reads take the read lock; writes
// serialize through the write lock, which is what makes the
// compare-and-swap in Put atomic.
type Store struct {
	root    string
	mu      sync.RWMutex
	entries map[string]Record // key → record
}

// NewStore creates a Store rooted at the given directory. If the
// directory contains pointer files from a previous run, they are
// loaded into the in-memory index.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating pointer directory %s: %w", root, err)
	}

	store := &Store{
		root:    root,
		entries: make(map[string]Record),
	}

	if err := store.scanAll(); err != nil {
		return nil, fmt.Errorf("scanning existing pointers: %w", err)
	}

	return store, nil
}

// Get returns the pointer record for the given key.
func (s *Store) Get(key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.entries[key]
	if !exists {
		return Record{}, fmt.Errorf("pointer for %q: %w", key, ErrKeyNotFound)
	}
	return record, nil
}

// Put creates or updates a key's pointer. When force is false (the
// default), this is a compare-and-swap operation: if the key already
// exists and expectedPrev does not match the current head, the
// operation fails with a *ConflictError carrying the current head.
// When force is true, the write is unconditional (last writer wins).
//
// expectedPrev is ignored for new keys and when force is true. A nil
// expectedPrev on an existing key means "I believe this key is new"
// and conflicts if a record exists.
func (s *Store) Put(key string, head pad.Address, size int64, padCount int, expectedPrev *pad.Address, force bool, now time.Time) (Record, error) {
	if key == "" {
		return Record{}, fmt.Errorf("key is required")
	}
	if len(key) > MaxKeyLength {
		return Record{}, fmt.Errorf("key is %d bytes, maximum is %d", len(key), MaxKeyLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.entries[key]

	// Compare-and-swap check.
	if !force && exists {
		if expectedPrev == nil {
			return Record{}, &ConflictError{Key: key, Current: existing.Head}
		}
		if existing.Head != *expectedPrev {
			return Record{}, &ConflictError{Key: key, Current: existing.Head, Expected: *expectedPrev}
		}
	}

	record := Record{
		Key:       key,
		Head:      head,
		Size:      size,
		PadCount:  padCount,
		UpdatedAt: now,
	}
	if exists {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}

	if err := s.writeFile(record); err != nil {
		return Record{}, err
	}

	s.entries[key] = record
	return record, nil
}

// Remove deletes a key's pointer. Returns ErrKeyNotFound if the key
// has no pointer record.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		return fmt.Errorf("pointer for %q: %w", key, ErrKeyNotFound)
	}

	path := s.pointerPath(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pointer file for %q: %w", key, err)
	}

	delete(s.entries, key)
	return nil
}

// List returns all pointer records whose keys start with prefix,
// sorted by key. An empty prefix returns all records.
func (s *Store) List(prefix string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Record
	for _, record := range s.entries {
		if prefix == "" || strings.HasPrefix(record.Key, prefix) {
			results = append(results, record)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// scanAll walks the pointer directory and loads all pointer files into
// the in-memory index. Called once at startup.
func (s *Store) scanAll() error {
	return filepath.WalkDir(s.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".cbor") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading pointer file %s: %w", path, err)
		}

		var record Record
		if err := codec.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decoding pointer file %s: %w", path, err)
		}

		if record.Key == "" {
			// Skip corrupt or incomplete pointer files.
			return nil
		}

		s.entries[record.Key] = record
		return nil
	})
}

// writeFile atomically writes a pointer record to disk.
func (s *Store) writeFile(record Record) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding pointer for %q: %w", record.Key, err)
	}

	finalPath := s.pointerPath(record.Key)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating pointer shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.root, "pointer-*.cbor")
	if err != nil {
		return fmt.Errorf("creating temp pointer file: %w", err)
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
		return fmt.Errorf("writing pointer data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp pointer file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming pointer file to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// pointerPath returns the sharded filesystem path for a key's pointer
// file. The key is hashed with BLAKE3 to produce a filesystem-safe
// name, using the same two-level sharding as the history log.
func (s *Store) pointerPath(key string) string {
	hexString := pad.HashKeyName(key)
	return filepath.Join(s.root, hexString[:2], hexString[2:4], hexString+".cbor")
}
