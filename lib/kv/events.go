// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import "fmt"

// EventKind classifies a progress event.
type EventKind uint8

const (
	// Starting: the operation knows its total pad count and is about
	// to touch the network.
	Starting EventKind = iota
	// PadWritten: one pad finished uploading.
	PadWritten
	// PadFetched: one pad finished downloading.
	PadFetched
	// Complete: the operation finished.
	Complete
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case Starting:
		return "starting"
	case PadWritten:
		return "pad-written"
	case PadFetched:
		return "pad-fetched"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one progress notification during a Put or Get.
type Event struct {
	Kind EventKind

	// TotalPads is set on Starting.
	TotalPads int

	// PadIndex is set on PadWritten and PadFetched. Indices arrive in
	// completion order, not necessarily ascending.
	PadIndex int
}

// Callback receives progress events. Returning false cancels the
// operation; for a Put this abandons the write and rolls it back.
// Callbacks run on the operation's goroutine and must not block.
type Callback func(Event) bool

// emit invokes cb if non-nil. A nil callback never cancels.
func emit(cb Callback, event Event) bool {
	if cb == nil {
		return true
	}
	return cb(event)
}
