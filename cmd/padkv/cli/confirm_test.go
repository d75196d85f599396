// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "testing"

func TestConfirmRefusesWithoutTerminal(t *testing.T) {
	// Under the test runner stdin is not a terminal, and a question
	// nobody can answer must not pass — scripted removal goes through
	// --force.
	if Confirm("remove everything?") {
		t.Fatal("Confirm returned true with no terminal on stdin")
	}
}
