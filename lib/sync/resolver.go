// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"time"

	"github.com/padkv/padkv/lib/pad"
)

// Candidate describes one side of a pointer conflict during
// reconciliation: the local in-flight write, or the record that
// committed while it was interrupted.
type Candidate struct {
	Key     string
	Head    pad.Address
	Size    int64
	Started time.Time // intent time (local) or pointer update time (committed)
	Version uint64    // history version of this head, 0 if the log has none
}

// Resolver decides the winner when a reconciled write finds the
// committed pointer no longer at the head it expected. Returning true
// keeps the local candidate (the pointer is overwritten); returning
// false yields to the committed record (the candidate's pads are
// discarded).
type Resolver interface {
	Resolve(local, committed Candidate) bool
}

// LastWriterWins is the default Resolver. History version ordering
// decides when both sides have a recorded version — the log is
// append-only, so the higher version is the later write. A side with
// no recorded version falls back to timestamps: local intent time
// against the committed pointer's update time. Ties go to the
// committed record — it already holds the key, so yielding is the
// cheaper outcome.
type LastWriterWins struct{}

func (LastWriterWins) Resolve(local, committed Candidate) bool {
	if local.Version != 0 && committed.Version != 0 && local.Version != committed.Version {
		return local.Version > committed.Version
	}
	return local.Started.After(committed.Started)
}

// PreferRemote always yields to the committed pointer. Useful when
// reconciling writes of unknown age after a long offline period.
type PreferRemote struct{}

func (PreferRemote) Resolve(local, committed Candidate) bool {
	return false
}
