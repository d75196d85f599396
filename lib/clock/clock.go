// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject NewFake() and advance time
// deterministically. Every function that needs time.Now, time.After,
// or time.Sleep accepts a Clock (or is a method on a struct with a
// Clock field) instead of calling the time package directly.
package clock

import "time"

// Clock provides the time operations used by this module.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
