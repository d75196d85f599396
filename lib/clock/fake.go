// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock for tests. Time only moves when
// the test calls Advance or Set. After channels fire when the fake
// time passes their deadline; Sleep returns immediately (a sleeping
// goroutine cannot advance a fake clock, so blocking would deadlock
// single-goroutine tests).
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake returns a FakeClock starting at a fixed, arbitrary epoch.
// Using a fixed epoch keeps timestamps in test fixtures stable.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that fires once the fake time reaches
// now+d. If d <= 0 the channel fires immediately.
func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, &fakeWaiter{deadline: f.now.Add(d), ch: ch})
	return ch
}

// Sleep returns immediately. Tests that need to observe backoff
// delays use After-based code paths and Advance.
func (f *FakeClock) Sleep(time.Duration) {}

// Advance moves the fake time forward by d and fires every waiter
// whose deadline has been reached, in deadline order.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	sort.Slice(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.deadline.After(f.now) {
			w.ch <- f.now
		} else {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
}

// Set jumps the fake time to t without firing waiters scheduled
// before t. Use Advance when waiter delivery matters.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
