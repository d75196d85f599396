// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package netstore

// Retry wrapper for transient network failures. Individual pad
// operations against a congested network fail intermittently; because
// chunks are content-addressed, a PutChunk retry is always safe and a
// GetChunk retry can only return the correct bytes. Repeated failure
// escalates to ErrNetworkUnavailable so callers can distinguish an
// exhausted retry budget from a chunk that genuinely is not there.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/padkv/padkv/lib/clock"
	"github.com/padkv/padkv/lib/pad"
)

// DefaultRetryAttempts is the default number of tries for one chunk
// operation before giving up.
const DefaultRetryAttempts = 3

// DefaultRetryBackoff is the delay before the first retry; each
// further retry doubles it.
const DefaultRetryBackoff = 500 * time.Millisecond

// Retrying wraps a Network with bounded exponential backoff on
// transient errors. ErrChunkNotFound and context cancellation are
// permanent and returned immediately.
type Retrying struct {
	inner    Network
	attempts int
	backoff  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// NewRetrying wraps inner with the given retry budget. attempts <= 0
// and backoff <= 0 fall back to the defaults.
func NewRetrying(inner Network, attempts int, backoff time.Duration, clk clock.Clock, logger *slog.Logger) *Retrying {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Retrying{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
		clock:    clk,
		logger:   logger,
	}
}

// PutChunk stores data, retrying transient failures.
func (r *Retrying) PutChunk(ctx context.Context, data []byte) (pad.Address, error) {
	var addr pad.Address
	err := r.retry(ctx, "put", func() error {
		var err error
		addr, err = r.inner.PutChunk(ctx, data)
		return err
	})
	return addr, err
}

// GetChunk fetches a chunk, retrying transient failures.
func (r *Retrying) GetChunk(ctx context.Context, addr pad.Address) ([]byte, error) {
	var data []byte
	err := r.retry(ctx, "get", func() error {
		var err error
		data, err = r.inner.GetChunk(ctx, addr)
		return err
	})
	return data, err
}

// retry runs op up to r.attempts times with doubling backoff between
// tries. Permanent errors pass through unchanged; an exhausted budget
// returns ErrNetworkUnavailable wrapping the last failure.
func (r *Retrying) retry(ctx context.Context, operation string, op func() error) error {
	var lastError error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			backoff := r.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(backoff):
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastError = err

		r.logger.Warn("transient chunk operation failure, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return fmt.Errorf("%w: %d attempts failed: %v", ErrNetworkUnavailable, r.attempts, lastError)
}

// isTransient reports whether an error is worth retrying. A missing
// chunk is a definitive answer from the network; cancellation belongs
// to the caller. Everything else is assumed transient.
func isTransient(err error) bool {
	if errors.Is(err, ErrChunkNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
