// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package kv

import "errors"

// Sentinel errors returned by Store operations. Lower layers carry
// the detail; these classify the failure for callers that branch on
// it (the CLI's exit codes, retry decisions in scripts).
var (
	// ErrNotFound: the key has no committed pointer, or the requested
	// version does not exist or is a removal.
	ErrNotFound = errors.New("not found")

	// ErrConflictingWrite: another writer holds the key or committed
	// under it first.
	ErrConflictingWrite = errors.New("conflicting write")

	// ErrPartialWriteAbandoned: an in-flight write was rolled back;
	// the committed value (if any) is untouched.
	ErrPartialWriteAbandoned = errors.New("partial write abandoned")
)
