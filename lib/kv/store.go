// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package kv is the padkv facade: a mutable key-value store layered
// over an immutable, content-addressed pad network. Values are split
// into pad chains and uploaded once; mutation happens only in the
// local pointer store, which maps each key to its current chain head.
// Every operation the CLI exposes goes through Store.
package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/padkv/padkv/lib/chain"
	"github.com/padkv/padkv/lib/clock"
	"github.com/padkv/padkv/lib/config"
	"github.com/padkv/padkv/lib/history"
	"github.com/padkv/padkv/lib/index"
	"github.com/padkv/padkv/lib/netstore"
	"github.com/padkv/padkv/lib/pad"
	"github.com/padkv/padkv/lib/pointer"
	padsync "github.com/padkv/padkv/lib/sync"
)

// Store is the top-level handle. It is safe for concurrent use;
// writes to the same key fail fast with ErrConflictingWrite rather
// than queueing.
type Store struct {
	cfg         *config.Config
	network     netstore.Network
	staging     *netstore.Disk
	pointers    *pointer.Store
	log         *history.Log
	idx         *index.Index
	reader      *chain.Reader
	writer      *chain.Writer
	engine      *padsync.Engine
	clock       clock.Clock
	logger      *slog.Logger
	compression pad.CompressionTag

	activeMu gosync.Mutex
	active   map[string]struct{}
}

// Option adjusts Store construction.
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   *slog.Logger
	network  netstore.Network
	resolver padsync.Resolver
}

// WithClock injects a clock. Tests use clock.NewFake.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithLogger injects a logger. The default discards nothing — it is
// slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNetwork overrides the configured chunk backend. The store still
// wraps it with the configured retry policy.
func WithNetwork(network netstore.Network) Option {
	return func(o *options) { o.network = network }
}

// WithResolver overrides the conflict resolver used during
// reconciliation. The default is last-writer-wins.
func WithResolver(resolver padsync.Resolver) Option {
	return func(o *options) { o.resolver = resolver }
}

// Open builds a Store from configuration, creating local state
// directories as needed.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	compression, err := pad.ParseCompressionTag(cfg.Compression)
	if err != nil {
		return nil, err
	}
	backoff, err := cfg.RetryBackoff()
	if err != nil {
		return nil, err
	}

	inner := o.network
	if inner == nil {
		switch cfg.Network.Kind {
		case "memory":
			inner = netstore.NewMemory()
		case "disk":
			disk, err := netstore.NewDisk(cfg.Network.Path)
			if err != nil {
				return nil, fmt.Errorf("opening disk network backend: %w", err)
			}
			inner = disk
		}
	}
	network := netstore.NewRetrying(inner, cfg.Retry.Attempts, backoff, o.clock, o.logger)

	staging, err := netstore.NewDisk(cfg.StagingDir())
	if err != nil {
		return nil, fmt.Errorf("opening staging store: %w", err)
	}
	pointers, err := pointer.NewStore(cfg.PointerDir())
	if err != nil {
		return nil, err
	}
	log, err := history.NewLog(cfg.HistoryDir())
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, err
	}

	store := &Store{
		cfg:         cfg,
		network:     network,
		staging:     staging,
		pointers:    pointers,
		log:         log,
		idx:         idx,
		reader:      chain.NewReader(network, cfg.UploadWorkers, o.logger),
		writer:      chain.NewWriter(network, cfg.UploadWorkers, o.logger),
		clock:       o.clock,
		logger:      o.logger,
		compression: compression,
		active:      make(map[string]struct{}),
	}
	store.engine = padsync.NewEngine(network, staging, pointers, log, idx,
		o.resolver, o.clock, o.logger)
	return store, nil
}

// Close flushes and closes local state. The network backends hold no
// resources beyond file handles per operation.
func (s *Store) Close() error {
	return s.idx.Close()
}

// Put writes a value under key, replacing any previous value. The
// write is atomic at the pointer swap: readers see either the old
// chain or the new one, never a mixture. A concurrent Put or Remove
// on the same key fails fast with ErrConflictingWrite.
//
// If the upload is interrupted by a network failure the write stays
// resumable: its pads are staged locally and recorded as in-flight,
// and the next Reconcile finishes or abandons it. Cancelling via ctx
// or the callback rolls the write back immediately.
func (s *Store) Put(ctx context.Context, key string, value []byte, cb Callback) (pointer.Record, error) {
	if !s.acquire(key) {
		return pointer.Record{}, fmt.Errorf("%w: key %q has an operation in flight", ErrConflictingWrite, key)
	}
	defer s.release(key)

	// The head this write intends to replace. Zero for a new key.
	var priorHead pad.Address
	var expectedPrev *pad.Address
	if existing, err := s.pointers.Get(key); err == nil {
		priorHead = existing.Head
		expectedPrev = &priorHead
	} else if !errors.Is(err, pointer.ErrKeyNotFound) {
		return pointer.Record{}, err
	}

	plan, err := chain.NewPlan(value, s.cfg.PadCapacity, s.compression)
	if err != nil {
		return pointer.Record{}, err
	}

	if !emit(cb, Event{Kind: Starting, TotalPads: len(plan.Pads)}) {
		return pointer.Record{}, fmt.Errorf("%w: cancelled before upload", ErrPartialWriteAbandoned)
	}

	// Stage the encoded pads and record intent before the first byte
	// reaches the network. From here the write is crash-recoverable.
	if err := chain.Stage(ctx, s.staging, plan); err != nil {
		return pointer.Record{}, fmt.Errorf("staging pads for %q: %w", key, err)
	}
	if err := s.idx.MarkDirty(key, plan.Head, priorHead, plan.Addresses(), plan.Size, s.clock.Now()); err != nil {
		return pointer.Record{}, err
	}

	uploadErr := s.writer.Upload(ctx, plan, func(i int) bool {
		return emit(cb, Event{Kind: PadWritten, PadIndex: i})
	})
	if uploadErr != nil {
		if errors.Is(uploadErr, context.Canceled) {
			if err := s.abandon(key, plan); err != nil {
				return pointer.Record{}, err
			}
			return pointer.Record{}, fmt.Errorf("%w: upload cancelled", ErrPartialWriteAbandoned)
		}
		// Network trouble: leave the write pending for Reconcile.
		return pointer.Record{}, fmt.Errorf("uploading %q (resumable via sync): %w", key, uploadErr)
	}

	if _, err := s.log.Append(key, plan.Head, plan.Size, len(plan.Pads), false, s.clock.Now()); err != nil {
		return pointer.Record{}, err
	}

	record, err := s.pointers.Put(key, plan.Head, plan.Size, len(plan.Pads),
		expectedPrev, false, s.clock.Now())
	if err != nil {
		if pointer.IsConflict(err) {
			if abandonErr := s.abandon(key, plan); abandonErr != nil {
				return pointer.Record{}, abandonErr
			}
			return pointer.Record{}, fmt.Errorf("%w: %v", ErrConflictingWrite, err)
		}
		return pointer.Record{}, err
	}

	if err := s.idx.MarkCommitted(key, s.clock.Now()); err != nil {
		return pointer.Record{}, err
	}
	if err := chain.Unstage(s.staging, plan.Addresses()); err != nil {
		return pointer.Record{}, err
	}
	if err := s.idx.MarkClean(key, s.clock.Now()); err != nil {
		return pointer.Record{}, err
	}

	emit(cb, Event{Kind: Complete})
	s.logger.Info("put", "key", key, "size", plan.Size, "pads", len(plan.Pads),
		"head", plan.Head.Short())
	return record, nil
}

// Get reads the current value of key. The cached pad address list is
// used for concurrent fetching when it matches the committed head; a
// stale or damaged cache entry falls back to a verified sequential
// walk of the chain.
func (s *Store) Get(ctx context.Context, key string, cb Callback) ([]byte, pointer.Record, error) {
	record, err := s.pointers.Get(key)
	if err != nil {
		if errors.Is(err, pointer.ErrKeyNotFound) {
			return nil, pointer.Record{}, fmt.Errorf("%w: key %q", ErrNotFound, key)
		}
		return nil, pointer.Record{}, err
	}

	value, err := s.readChain(ctx, key, record.Head, record.PadCount, cb)
	if err != nil {
		return nil, pointer.Record{}, err
	}
	return value, record, nil
}

// readChain fetches and reassembles the chain at head, preferring the
// cached address list for key when it is usable.
func (s *Store) readChain(ctx context.Context, key string, head pad.Address, padCount int, cb Callback) ([]byte, error) {
	if head.IsZero() {
		if !emit(cb, Event{Kind: Starting, TotalPads: 0}) {
			return nil, context.Canceled
		}
		emit(cb, Event{Kind: Complete})
		return []byte{}, nil
	}

	if !emit(cb, Event{Kind: Starting, TotalPads: padCount}) {
		return nil, context.Canceled
	}
	progress := func(i int) bool {
		return emit(cb, Event{Kind: PadFetched, PadIndex: i})
	}

	if cached, found := s.idx.Get(key); found &&
		cached.State == index.Clean &&
		cached.Head == head &&
		len(cached.PadAddresses) > 0 {
		value, err := s.reader.ReadAddresses(ctx, cached.PadAddresses, progress)
		if err == nil {
			emit(cb, Event{Kind: Complete})
			return value, nil
		}
		if !chain.IsCorrupt(err) && !chain.IsTruncated(err) {
			return nil, err
		}
		// The cache lied. Drop it and walk the real chain.
		s.logger.Warn("cached address list failed verification, rewalking chain",
			"key", key, "error", err)
		if invErr := s.idx.Invalidate(key); invErr != nil {
			return nil, invErr
		}
	}

	value, addrs, err := s.reader.ReadChain(ctx, head, progress)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.idx.Put(index.Entry{
			Key:          key,
			Head:         head,
			Size:         int64(len(value)),
			PadAddresses: addrs,
			State:        index.Clean,
			UpdatedAt:    s.clock.Now(),
		}); err != nil {
			return nil, err
		}
	}

	emit(cb, Event{Kind: Complete})
	return value, nil
}

// Remove deletes key: a tombstone is appended to its history and the
// pointer is dropped. The chain's pads stay on the network — they are
// immutable and may back older versions. Removing an absent key is
// not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if !s.acquire(key) {
		return fmt.Errorf("%w: key %q has an operation in flight", ErrConflictingWrite, key)
	}
	defer s.release(key)

	if _, err := s.pointers.Get(key); err != nil {
		if errors.Is(err, pointer.ErrKeyNotFound) {
			return nil
		}
		return err
	}

	if _, err := s.log.Append(key, pad.Address{}, 0, 0, true, s.clock.Now()); err != nil {
		return err
	}
	if err := s.pointers.Remove(key); err != nil {
		return err
	}
	if err := s.idx.Invalidate(key); err != nil {
		return err
	}

	s.logger.Info("remove", "key", key)
	return nil
}

// List returns the committed pointer records whose keys start with
// prefix, sorted by key.
func (s *Store) List(prefix string) []pointer.Record {
	return s.pointers.List(prefix)
}

// History returns a key's full version history, oldest first,
// including tombstones.
func (s *Store) History(key string) ([]history.Entry, error) {
	entries, err := s.log.List(key)
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) {
			return nil, fmt.Errorf("%w: key %q", ErrNotFound, key)
		}
		return nil, err
	}
	return entries, nil
}

// GetVersion reads a specific historical version of key. Pads are
// immutable, so any version whose chain has not been garbage
// collected by the network remains readable. A tombstone version
// returns ErrNotFound.
func (s *Store) GetVersion(ctx context.Context, key string, version uint64, cb Callback) ([]byte, history.Entry, error) {
	entry, err := s.log.GetVersion(key, version)
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) || errors.Is(err, history.ErrVersionNotFound) {
			return nil, history.Entry{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, history.Entry{}, err
	}
	if entry.Tombstone {
		return nil, history.Entry{}, fmt.Errorf("%w: version %d of %q is a removal", ErrNotFound, version, key)
	}

	// Historical chains bypass the per-key cache: the cache tracks
	// only the current head.
	value, err := s.readChain(ctx, "", entry.Head, entry.PadCount, cb)
	if err != nil {
		return nil, history.Entry{}, err
	}
	return value, entry, nil
}

// Reconcile drives pending writes to completion or abandonment.
func (s *Store) Reconcile(ctx context.Context) (*padsync.Report, error) {
	return s.engine.Reconcile(ctx)
}

// Stats summarizes local state.
type Stats struct {
	Keys          int
	IndexEntries  int
	PendingWrites int
	StagedPads    int
}

// Stats returns a snapshot of local state counters.
func (s *Store) Stats() (Stats, error) {
	staged, err := countChunkFiles(s.cfg.StagingDir())
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Keys:          s.pointers.Len(),
		IndexEntries:  s.idx.Len(),
		PendingWrites: len(s.idx.Pending()),
		StagedPads:    staged,
	}, nil
}

// Reset discards the local cache: every index entry and every staged
// pad. Committed pointers and history are untouched; subsequent reads
// repopulate the cache from the network.
func (s *Store) Reset() error {
	for _, entry := range s.idx.Entries() {
		if err := s.idx.Invalidate(entry.Key); err != nil {
			return err
		}
	}
	if err := s.idx.Compact(); err != nil {
		return err
	}

	root := s.cfg.StagingDir()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.Contains(path, string(filepath.Separator)+"tmp"+string(filepath.Separator)) {
			return nil
		}
		return os.Remove(path)
	})
}

// acquire takes the per-key operation slot. Returns false when the
// key already has an operation in flight.
func (s *Store) acquire(key string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if _, busy := s.active[key]; busy {
		return false
	}
	s.active[key] = struct{}{}
	return true
}

// release frees the per-key operation slot.
func (s *Store) release(key string) {
	s.activeMu.Lock()
	delete(s.active, key)
	s.activeMu.Unlock()
}

// abandon rolls back an in-flight write: orphan the index entry, drop
// the staged pads, forget the entry.
func (s *Store) abandon(key string, plan *chain.Plan) error {
	if err := s.idx.MarkOrphaned(key, s.clock.Now()); err != nil {
		return err
	}
	if err := chain.Unstage(s.staging, plan.Addresses()); err != nil {
		return err
	}
	return s.idx.Invalidate(key)
}

// countChunkFiles counts regular files under a sharded chunk root,
// skipping the tmp staging area.
func countChunkFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return fs.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	return count, err
}
