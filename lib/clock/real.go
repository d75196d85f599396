// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// realClock delegates to the time package.
type realClock struct{}

// Real returns a Clock backed by the system time.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
