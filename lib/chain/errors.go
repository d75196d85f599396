// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"errors"
	"fmt"

	"github.com/padkv/padkv/lib/pad"
)

// ErrorKind classifies chain read failures.
type ErrorKind int

const (
	// Corrupt means an expected pad is missing from the network, its
	// bytes do not match the claimed address, or its header
	// contradicts its position in the chain. Fatal for that read; the
	// data cannot be trusted.
	Corrupt ErrorKind = iota

	// Truncated means the walk ended without a terminal length
	// marker, or the reassembled bytes do not add up to the declared
	// value length.
	Truncated
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case Corrupt:
		return "corrupt"
	case Truncated:
		return "truncated"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is a structured chain read failure. Callers use errors.As to
// inspect the kind and the offending pad:
//
//	var chainErr *chain.Error
//	if errors.As(err, &chainErr) && chainErr.Kind == chain.Corrupt { ... }
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Addr is the address of the pad where the failure was detected,
	// or the zero Address when the failure is about the chain as a
	// whole.
	Addr pad.Address

	// Detail is a human-readable description.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Addr.IsZero() {
		return fmt.Sprintf("chain %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("chain %s at %s: %s", e.Kind, e.Addr.Short(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCorrupt reports whether err is a chain Error of kind Corrupt.
func IsCorrupt(err error) bool {
	return hasKind(err, Corrupt)
}

// IsTruncated reports whether err is a chain Error of kind Truncated.
func IsTruncated(err error) bool {
	return hasKind(err, Truncated)
}

func hasKind(err error, kind ErrorKind) bool {
	var chainErr *Error
	return errors.As(err, &chainErr) && chainErr.Kind == kind
}
