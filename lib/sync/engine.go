// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package sync reconciles interrupted writes. Every put records its
// intent in the local index and stages its encoded pads on disk
// before touching the network, so after a crash the engine can finish
// the upload, replay the commit, or abandon the write — and always
// leaves the pointer store at a consistent head.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/padkv/padkv/lib/chain"
	"github.com/padkv/padkv/lib/clock"
	"github.com/padkv/padkv/lib/history"
	"github.com/padkv/padkv/lib/index"
	"github.com/padkv/padkv/lib/netstore"
	"github.com/padkv/padkv/lib/pad"
	"github.com/padkv/padkv/lib/pointer"
)

// Outcome classifies what Reconcile did with one pending key.
type Outcome uint8

const (
	// Completed: a write past its commit point had its local cleanup
	// finished.
	Completed Outcome = iota
	// Resumed: an interrupted upload was finished from staged pads and
	// the write committed.
	Resumed
	// Abandoned: the write could not be finished (staged pads lost)
	// and was rolled back; the committed pointer is untouched.
	Abandoned
	// ConflictLost: the pointer moved while the write was in flight
	// and the resolver yielded to the committed record.
	ConflictLost
	// Failed: a transient error (network, disk) stopped
	// reconciliation of this key; it stays pending.
	Failed
)

// String returns the outcome name used in logs and CLI output.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Resumed:
		return "resumed"
	case Abandoned:
		return "abandoned"
	case ConflictLost:
		return "conflict-lost"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// KeyResult is the reconciliation result for one key.
type KeyResult struct {
	Key     string
	Outcome Outcome
	Err     error
}

// Report summarizes one Reconcile pass.
type Report struct {
	Results []KeyResult
}

// Count returns how many keys ended with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	total := 0
	for _, result := range r.Results {
		if result.Outcome == outcome {
			total++
		}
	}
	return total
}

// Engine drives reconciliation over the local index's pending
// entries.
type Engine struct {
	network  netstore.Network
	staging  *netstore.Disk
	pointers *pointer.Store
	log      *history.Log
	idx      *index.Index
	resolver Resolver
	clock    clock.Clock
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil resolver defaults to
// LastWriterWins.
func NewEngine(
	network netstore.Network,
	staging *netstore.Disk,
	pointers *pointer.Store,
	log *history.Log,
	idx *index.Index,
	resolver Resolver,
	clk clock.Clock,
	logger *slog.Logger,
) *Engine {
	if resolver == nil {
		resolver = LastWriterWins{}
	}
	return &Engine{
		network:  network,
		staging:  staging,
		pointers: pointers,
		log:      log,
		idx:      idx,
		resolver: resolver,
		clock:    clk,
		logger:   logger,
	}
}

// Reconcile processes every pending index entry and returns a report.
// It is idempotent: rerunning after any partial failure converges to
// the same state. Transient failures mark the key Failed and leave it
// pending for the next pass.
func (e *Engine) Reconcile(ctx context.Context) (*Report, error) {
	report := &Report{}

	for _, entry := range e.idx.Pending() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := e.reconcileKey(ctx, entry)
		report.Results = append(report.Results, result)

		level := slog.LevelInfo
		if result.Err != nil {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "reconciled key",
			"key", result.Key,
			"outcome", result.Outcome.String(),
			"error", result.Err,
		)
	}
	return report, nil
}

// reconcileKey handles one pending entry according to its state.
func (e *Engine) reconcileKey(ctx context.Context, entry index.Entry) KeyResult {
	switch entry.State {
	case index.Committed:
		return e.finishCommitted(entry)
	case index.Orphaned:
		return e.discardOrphan(entry)
	case index.Dirty:
		return e.resumeDirty(ctx, entry)
	default:
		return KeyResult{Key: entry.Key, Outcome: Failed,
			Err: fmt.Errorf("unexpected pending state %s", entry.State)}
	}
}

// finishCommitted completes local cleanup for a write that already
// swapped the pointer: drop the staged pads and mark the key clean.
func (e *Engine) finishCommitted(entry index.Entry) KeyResult {
	if err := chain.Unstage(e.staging, entry.PadAddresses); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	if err := e.idx.MarkClean(entry.Key, e.clock.Now()); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	return KeyResult{Key: entry.Key, Outcome: Completed}
}

// discardOrphan drops an abandoned write's staged pads and forgets
// its index entry. The committed pointer was never touched.
func (e *Engine) discardOrphan(entry index.Entry) KeyResult {
	if err := chain.Unstage(e.staging, entry.PadAddresses); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	if err := e.idx.Invalidate(entry.Key); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	return KeyResult{Key: entry.Key, Outcome: Abandoned}
}

// resumeDirty drives an interrupted write to completion: every pad
// must reach the network, the history entry must exist, and the
// pointer must swap to the intent head. Each step checks before it
// acts, so a write interrupted at any point replays cleanly.
func (e *Engine) resumeDirty(ctx context.Context, entry index.Entry) KeyResult {
	// 1. Ensure every pad of the intent chain is on the network,
	// re-uploading from staging where needed.
	for _, addr := range entry.PadAddresses {
		present, err := e.ensurePad(ctx, addr)
		if err != nil {
			return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
		}
		if !present {
			// A pad exists neither on the network nor in staging.
			// The write can never complete — abandon it.
			e.logger.Warn("abandoning write with lost pad",
				"key", entry.Key, "pad", addr.Short())
			return e.abandonDirty(entry)
		}
	}

	// 2. Find the history version the original write may have appended
	// before the interruption. Zero means the append never happened.
	localVersion, err := e.versionOf(entry.Key, entry.IntentHead)
	if err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}

	// 3. Swap the pointer. The compare-and-swap expects the head the
	// write originally read; a mismatch means someone else committed
	// in the meantime and the resolver decides. The history append for
	// a not-yet-recorded write waits until the conflict is won — the
	// log's version ordering feeds the resolver, and a version assigned
	// during reconciliation would spuriously outrank the committed
	// writer's.
	expectedPrev := &entry.PriorHead
	if entry.PriorHead.IsZero() {
		expectedPrev = nil
	}
	current, err := e.pointers.Get(entry.Key)
	if err == nil && current.Head == entry.IntentHead {
		// Already committed before the interruption.
		if err := e.ensureHistory(entry, localVersion); err != nil {
			return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
		}
		return e.finishCommitted(entry)
	}

	_, err = e.pointers.Put(entry.Key, entry.IntentHead, entry.Size,
		len(entry.PadAddresses), expectedPrev, false, e.clock.Now())
	if pointer.IsConflict(err) {
		committed, getErr := e.pointers.Get(entry.Key)
		if getErr != nil {
			return KeyResult{Key: entry.Key, Outcome: Failed, Err: getErr}
		}
		committedVersion, verErr := e.versionOf(entry.Key, committed.Head)
		if verErr != nil {
			return KeyResult{Key: entry.Key, Outcome: Failed, Err: verErr}
		}
		local := Candidate{
			Key:     entry.Key,
			Head:    entry.IntentHead,
			Size:    entry.Size,
			Started: entry.UpdatedAt,
			Version: localVersion,
		}
		other := Candidate{
			Key:     entry.Key,
			Head:    committed.Head,
			Size:    committed.Size,
			Started: committed.UpdatedAt,
			Version: committedVersion,
		}
		if !e.resolver.Resolve(local, other) {
			e.logger.Info("yielding to committed pointer",
				"key", entry.Key, "committed_head", committed.Head.Short())
			result := e.abandonDirty(entry)
			if result.Outcome == Abandoned {
				result.Outcome = ConflictLost
			}
			return result
		}
		_, err = e.pointers.Put(entry.Key, entry.IntentHead, entry.Size,
			len(entry.PadAddresses), nil, true, e.clock.Now())
	}
	if err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}

	// 4. Commit point passed — record the version and finish cleanup.
	// A crash before the append leaves the entry Dirty, and the next
	// pass takes the already-committed path above, which appends.
	if err := e.ensureHistory(entry, localVersion); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	if err := e.idx.MarkCommitted(entry.Key, e.clock.Now()); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	result := e.finishCommitted(entry)
	if result.Outcome == Completed {
		result.Outcome = Resumed
	}
	return result
}

// ensureHistory appends the entry's history record unless a version
// for its intent head already exists.
func (e *Engine) ensureHistory(entry index.Entry, localVersion uint64) error {
	if localVersion != 0 {
		return nil
	}
	_, err := e.log.Append(entry.Key, entry.IntentHead, entry.Size,
		len(entry.PadAddresses), false, e.clock.Now())
	return err
}

// versionOf returns the version of the most recent history entry for
// key whose head is head, or 0 when the log records no such head.
func (e *Engine) versionOf(key string, head pad.Address) (uint64, error) {
	entries, err := e.log.List(key)
	if err != nil {
		if errors.Is(err, history.ErrNoHistory) {
			return 0, nil
		}
		return 0, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		// Tombstones carry the zero head; they never stand for a write.
		if entries[i].Tombstone {
			continue
		}
		if entries[i].Head == head {
			return entries[i].Version, nil
		}
	}
	return 0, nil
}

// abandonDirty rolls a dirty write back: staged pads are dropped and
// the index entry removed. The pointer store keeps whatever head is
// committed.
func (e *Engine) abandonDirty(entry index.Entry) KeyResult {
	now := e.clock.Now()
	if err := e.idx.MarkOrphaned(entry.Key, now); err != nil {
		return KeyResult{Key: entry.Key, Outcome: Failed, Err: err}
	}
	return e.discardOrphan(entry)
}

// ensurePad makes sure the pad at addr is on the network, uploading
// it from staging if necessary. Returns false when the pad is in
// neither place.
func (e *Engine) ensurePad(ctx context.Context, addr pad.Address) (bool, error) {
	_, err := e.network.GetChunk(ctx, addr)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, netstore.ErrChunkNotFound) {
		return false, fmt.Errorf("checking pad %s: %w", addr.Short(), err)
	}

	staged, err := e.staging.GetChunk(ctx, addr)
	if err != nil {
		if errors.Is(err, netstore.ErrChunkNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reading staged pad %s: %w", addr.Short(), err)
	}

	uploaded, err := e.network.PutChunk(ctx, staged)
	if err != nil {
		return false, fmt.Errorf("re-uploading pad %s: %w", addr.Short(), err)
	}
	if uploaded != addr {
		return false, fmt.Errorf("re-uploaded pad %s came back as %s", addr.Short(), uploaded.Short())
	}
	return true, nil
}
