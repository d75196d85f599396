// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "testing"

func TestParseKeyVersion(t *testing.T) {
	cases := []struct {
		arg     string
		key     string
		version uint64
		wantErr bool
	}{
		{arg: "doc@1", key: "doc", version: 1},
		{arg: "backups/db/latest@42", key: "backups/db/latest", version: 42},
		// The version is everything after the last '@'.
		{arg: "user@example.com@3", key: "user@example.com", version: 3},
		{arg: "doc", wantErr: true},
		{arg: "@1", wantErr: true},
		{arg: "doc@", wantErr: true},
		{arg: "doc@0", wantErr: true},
		{arg: "doc@-1", wantErr: true},
		{arg: "doc@latest", wantErr: true},
	}
	for _, tc := range cases {
		key, version, err := parseKeyVersion(tc.arg)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseKeyVersion(%q) accepted", tc.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseKeyVersion(%q): %v", tc.arg, err)
			continue
		}
		if key != tc.key || version != tc.version {
			t.Errorf("parseKeyVersion(%q) = %q, %d", tc.arg, key, version)
		}
	}
}
