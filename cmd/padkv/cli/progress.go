// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/padkv/padkv/lib/kv"
)

// Progress renders transfer progress to stderr. On a terminal it
// redraws a single counter line; when stderr is piped it stays
// silent — the structured logger covers non-interactive runs.
type Progress struct {
	verb  string // "uploading" or "fetching"
	tty   bool
	total int
	done  int
}

// NewProgress creates a Progress for the given verb.
func NewProgress(verb string) *Progress {
	return &Progress{
		verb: verb,
		tty:  term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Callback returns a kv.Callback that drives this Progress. It never
// cancels the operation.
func (p *Progress) Callback() kv.Callback {
	return func(event kv.Event) bool {
		switch event.Kind {
		case kv.Starting:
			p.total = event.TotalPads
			p.done = 0
			p.draw()
		case kv.PadWritten, kv.PadFetched:
			p.done++
			p.draw()
		case kv.Complete:
			p.finish()
		}
		return true
	}
}

func (p *Progress) draw() {
	if !p.tty || p.total == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s %d/%d pads", p.verb, p.done, p.total)
}

func (p *Progress) finish() {
	if !p.tty || p.total == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s %d/%d pads\n", p.verb, p.total, p.total)
}
