// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/padkv/padkv/lib/netstore"
	"github.com/padkv/padkv/lib/pad"
)

// Reader reassembles values from pad chains.
type Reader struct {
	network netstore.Network
	workers int
	logger  *slog.Logger
}

// NewReader creates a Reader. workers <= 0 falls back to
// DefaultUploadWorkers (fetches are bounded the same way as uploads).
func NewReader(network netstore.Network, workers int, logger *slog.Logger) *Reader {
	if workers <= 0 {
		workers = DefaultUploadWorkers
	}
	return &Reader{network: network, workers: workers, logger: logger}
}

// Read walks the chain from head, fetching and verifying one pad at a
// time, and returns the reassembled value. A zero head is the empty
// value. onProgress may be nil.
//
// Integrity failures surface as *Error: Corrupt for a missing pad, an
// address mismatch, or a header inconsistent with the pad's position;
// Truncated when the chain ends without a terminal marker or the
// reassembled length disagrees with the declared value length.
func (r *Reader) Read(ctx context.Context, head pad.Address, onProgress ProgressFunc) ([]byte, error) {
	value, _, err := r.ReadChain(ctx, head, onProgress)
	return value, err
}

// ReadChain is Read plus the ordered address list of the chain it
// walked, so a caller can populate its cache from a single pass.
func (r *Reader) ReadChain(ctx context.Context, head pad.Address, onProgress ProgressFunc) ([]byte, []pad.Address, error) {
	if head.IsZero() {
		return []byte{}, nil, nil
	}

	var value []byte
	var addrs []pad.Address
	current := head
	index := 0

	for {
		p, err := r.fetchPad(ctx, current, uint32(index))
		if err != nil {
			return nil, nil, err
		}

		value = append(value, p.Payload...)
		addrs = append(addrs, current)

		if onProgress != nil && !onProgress(index) {
			return nil, nil, context.Canceled
		}

		if p.Terminal {
			if uint64(len(value)) != p.ValueLen {
				return nil, nil, &Error{
					Kind:   Truncated,
					Addr:   current,
					Detail: fmt.Sprintf("reassembled %d bytes, terminal pad declares %d", len(value), p.ValueLen),
				}
			}
			return value, addrs, nil
		}

		if p.Next.IsZero() {
			return nil, nil, &Error{
				Kind:   Truncated,
				Addr:   current,
				Detail: "chain ends without a terminal length marker",
			}
		}

		current = p.Next
		index++
	}
}

// ReadAddresses reassembles a value from a known, ordered pad address
// list (typically from the local index), fetching pads concurrently.
// Every pad is verified exactly as in Read, including the linkage:
// pad i must name pad i+1 as its successor and the final pad must be
// terminal. A stale or fabricated address list therefore cannot
// produce silently wrong data — it fails as Corrupt or Truncated.
func (r *Reader) ReadAddresses(ctx context.Context, addrs []pad.Address, onProgress ProgressFunc) ([]byte, error) {
	if len(addrs) == 0 {
		return []byte{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		index int
		p     *pad.Pad
		err   error
	}

	work := make(chan int)
	results := make(chan result)

	var wg sync.WaitGroup
	for worker := 0; worker < r.workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range work {
				p, err := r.fetchPad(ctx, addrs[index], uint32(index))
				select {
				case results <- result{index: index, p: p, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for index := range addrs {
			select {
			case work <- index:
			case <-ctx.Done():
				return
			}
		}
	}()

	pads := make([]*pad.Pad, len(addrs))
	done := 0
	var firstError error
	for done < len(addrs) && firstError == nil {
		select {
		case <-ctx.Done():
			firstError = ctx.Err()
		case res := <-results:
			if res.err != nil {
				firstError = res.err
				break
			}
			pads[res.index] = res.p
			done++
			if onProgress != nil && !onProgress(res.index) {
				firstError = context.Canceled
			}
		}
	}

	cancel()
	wg.Wait()

	if firstError != nil {
		return nil, firstError
	}

	// Verify linkage and reassemble in order.
	var value []byte
	for i, p := range pads {
		value = append(value, p.Payload...)

		last := i == len(pads)-1
		if last {
			if !p.Terminal {
				return nil, &Error{
					Kind:   Truncated,
					Addr:   addrs[i],
					Detail: "final pad of address list is not terminal",
				}
			}
			if uint64(len(value)) != p.ValueLen {
				return nil, &Error{
					Kind:   Truncated,
					Addr:   addrs[i],
					Detail: fmt.Sprintf("reassembled %d bytes, terminal pad declares %d", len(value), p.ValueLen),
				}
			}
		} else {
			if p.Terminal {
				return nil, &Error{
					Kind:   Corrupt,
					Addr:   addrs[i],
					Detail: fmt.Sprintf("pad %d is terminal but address list has %d pads", i, len(addrs)),
				}
			}
			if p.Next != addrs[i+1] {
				return nil, &Error{
					Kind:   Corrupt,
					Addr:   addrs[i],
					Detail: fmt.Sprintf("pad %d links to %s, address list expects %s", i, p.Next.Short(), addrs[i+1].Short()),
				}
			}
		}
	}
	return value, nil
}

// Walk follows the chain from head and returns the ordered address
// list without reassembling the value. Used to refresh the local
// index's cached address list.
func (r *Reader) Walk(ctx context.Context, head pad.Address) ([]pad.Address, error) {
	if head.IsZero() {
		return nil, nil
	}

	var addrs []pad.Address
	current := head
	index := 0

	for {
		p, err := r.fetchPad(ctx, current, uint32(index))
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, current)

		if p.Terminal {
			return addrs, nil
		}
		if p.Next.IsZero() {
			return nil, &Error{
				Kind:   Truncated,
				Addr:   current,
				Detail: "chain ends without a terminal length marker",
			}
		}
		current = p.Next
		index++
	}
}

// fetchPad retrieves and decodes one pad, mapping network and
// integrity failures to chain errors. The expected sequence number
// catches chains spliced from pads of other chains.
func (r *Reader) fetchPad(ctx context.Context, addr pad.Address, expectedSequence uint32) (*pad.Pad, error) {
	encoded, err := r.network.GetChunk(ctx, addr)
	if err != nil {
		if errors.Is(err, netstore.ErrChunkNotFound) {
			return nil, &Error{
				Kind:   Corrupt,
				Addr:   addr,
				Detail: "expected pad is missing from the network",
				Err:    err,
			}
		}
		return nil, fmt.Errorf("fetching pad %s: %w", addr.Short(), err)
	}

	p, err := pad.Decode(encoded, addr)
	if err != nil {
		return nil, &Error{
			Kind:   Corrupt,
			Addr:   addr,
			Detail: "pad failed verification",
			Err:    err,
		}
	}

	if p.Sequence != expectedSequence {
		return nil, &Error{
			Kind:   Corrupt,
			Addr:   addr,
			Detail: fmt.Sprintf("pad claims sequence %d, chain position is %d", p.Sequence, expectedSequence),
		}
	}
	return p, nil
}
