// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/padkv/padkv/lib/netstore"
	"github.com/padkv/padkv/lib/pad"
)

// DefaultUploadWorkers bounds concurrent pad uploads per chain.
// Pad writes are order-independent (each pad is self-contained and
// content-addressed), so they run in parallel; the bound keeps memory
// and connection pressure predictable.
const DefaultUploadWorkers = 8

// ProgressFunc receives the zero-based index of each pad as its
// upload or download completes. Returning false cancels the operation
// at the next opportunity.
type ProgressFunc func(index int) bool

// Writer uploads planned chains to the network.
type Writer struct {
	network netstore.Network
	workers int
	logger  *slog.Logger
}

// NewWriter creates a Writer. workers <= 0 falls back to
// DefaultUploadWorkers.
func NewWriter(network netstore.Network, workers int, logger *slog.Logger) *Writer {
	if workers <= 0 {
		workers = DefaultUploadWorkers
	}
	return &Writer{network: network, workers: workers, logger: logger}
}

// Upload writes every pad of the plan to the network, concurrently
// with bounded workers. It returns only after all pads are durably
// acknowledged — the caller must not install the head pointer before
// Upload returns nil. onProgress may be nil.
//
// Upload is idempotent and resumable: pads already present on the
// network are simply re-put (a no-op for a content-addressed store),
// so retrying a partially failed upload converges.
func (w *Writer) Upload(ctx context.Context, plan *Plan, onProgress ProgressFunc) error {
	if len(plan.Pads) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		index int
		err   error
	}

	work := make(chan int)
	results := make(chan result)

	var wg sync.WaitGroup
	for worker := 0; worker < w.workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range work {
				encoded := plan.Pads[index]
				addr, err := w.network.PutChunk(ctx, encoded.Bytes)
				if err == nil && addr != encoded.Address {
					err = fmt.Errorf("network stored pad %d under %s, expected %s",
						index, addr.Short(), encoded.Address.Short())
				}
				select {
				case results <- result{index: index, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for index := range plan.Pads {
			select {
			case work <- index:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := 0
	var firstError error
	for done < len(plan.Pads) && firstError == nil {
		select {
		case <-ctx.Done():
			firstError = ctx.Err()
		case res := <-results:
			if res.err != nil {
				firstError = fmt.Errorf("uploading pad %d of %d: %w", res.index, len(plan.Pads), res.err)
				break
			}
			done++
			if onProgress != nil && !onProgress(res.index) {
				firstError = context.Canceled
			}
		}
	}

	cancel()
	wg.Wait()

	if firstError != nil {
		w.logger.Debug("chain upload aborted",
			"head", plan.Head.Short(),
			"pads_done", done,
			"pads_total", len(plan.Pads),
			"error", firstError,
		)
		return firstError
	}
	return nil
}

// Stage writes every pad of the plan to a local staging store. Staged
// pads let the sync engine resume an interrupted upload after a crash
// without the original value.
func Stage(ctx context.Context, staging *netstore.Disk, plan *Plan) error {
	for index, encoded := range plan.Pads {
		if _, err := staging.PutChunk(ctx, encoded.Bytes); err != nil {
			return fmt.Errorf("staging pad %d of %d: %w", index, len(plan.Pads), err)
		}
	}
	return nil
}

// Unstage removes the plan's pads from the staging store. Called once
// the chain is committed; a missing staged pad is not an error.
func Unstage(staging *netstore.Disk, addrs []pad.Address) error {
	for _, addr := range addrs {
		if err := staging.Remove(addr); err != nil {
			return err
		}
	}
	return nil
}
