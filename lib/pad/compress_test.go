// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package pad

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	// Highly compressible input.
	data := bytes.Repeat([]byte("padkv padkv padkv "), 500)

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		compressed, err := compress(data, tag)
		if err != nil {
			t.Fatalf("%s: %v", tag, err)
		}
		if len(compressed) >= len(data) {
			t.Errorf("%s: compressed %d bytes to %d", tag, len(data), len(compressed))
		}

		restored, err := decompress(compressed, tag, len(data))
		if err != nil {
			t.Fatalf("%s: %v", tag, err)
		}
		if !bytes.Equal(restored, data) {
			t.Errorf("%s: round-trip mismatch", tag)
		}
	}
}

func TestCompressIncompressibleFallsBack(t *testing.T) {
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatal(err)
	}

	stored, tag, err := compressWithFallback(random, CompressionLZ4)
	if err != nil {
		t.Fatal(err)
	}
	if tag != CompressionNone {
		t.Errorf("random data stored with tag %s, want none", tag)
	}
	if !bytes.Equal(stored, random) {
		t.Error("fallback changed the payload")
	}
}

func TestCompressionTagStrings(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseCompressionTag(name)
		if err != nil {
			t.Fatal(err)
		}
		if tag.String() != name {
			t.Errorf("tag %q round-tripped to %q", name, tag.String())
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("unknown tag accepted")
	}
}
