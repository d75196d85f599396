// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package pad

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello pad network, this payload repeats itself, repeats itself")
	var next Address
	next[0] = 0xAB

	original := &Pad{
		Payload:  payload,
		Sequence: 7,
		Next:     next,
	}

	encoded, addr, err := Encode(original, CompressionLZ4)
	if err != nil {
		t.Fatal(err)
	}
	if addr.IsZero() {
		t.Fatal("encoded pad has zero address")
	}

	decoded, err := Decode(encoded, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(decoded.Payload), len(payload))
	}
	if decoded.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", decoded.Sequence)
	}
	if decoded.Next != next {
		t.Error("next address did not round-trip")
	}
	if decoded.Terminal {
		t.Error("non-terminal pad decoded as terminal")
	}
}

func TestEncodeTerminalPad(t *testing.T) {
	original := &Pad{
		Payload:  []byte("tail"),
		Sequence: 3,
		Terminal: true,
		ValueLen: 196612,
	}

	encoded, addr, err := Encode(original, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(encoded, addr)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Terminal {
		t.Error("terminal flag lost")
	}
	if decoded.ValueLen != 196612 {
		t.Errorf("value length = %d, want 196612", decoded.ValueLen)
	}
	if !decoded.Next.IsZero() {
		t.Error("terminal pad has non-zero next address")
	}
}

func TestDecodeRejectsTamperedContent(t *testing.T) {
	encoded, addr, err := Encode(&Pad{Payload: []byte("pristine"), Terminal: true, ValueLen: 8}, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]byte(nil), encoded...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := Decode(tampered, addr); err == nil {
		t.Fatal("tampered pad decoded without error")
	}
}

func TestDecodeRejectsWrongAddress(t *testing.T) {
	encoded, _, err := Encode(&Pad{Payload: []byte("content"), Terminal: true, ValueLen: 7}, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}

	var wrong Address
	wrong[5] = 0x01
	if _, err := Decode(encoded, wrong); err == nil {
		t.Fatal("pad decoded under the wrong address")
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	encoded, addr, err := Encode(&Pad{Terminal: true, ValueLen: 0}, CompressionZstd)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(encoded, addr)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("payload = %d bytes, want 0", len(decoded.Payload))
	}
}

func TestAddressDeterministic(t *testing.T) {
	p := &Pad{Payload: []byte("same content"), Sequence: 1, Terminal: true, ValueLen: 12}

	_, first, err := Encode(p, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := Encode(p, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("identical pads encoded to different addresses")
	}
}

func TestHashKeyNameDistinctFromPadDomain(t *testing.T) {
	// The same bytes hashed in the pad domain and the key-name domain
	// must never collide.
	content := []byte("collision/probe")
	padAddr := AddressOf(content)
	keyHash := HashKeyName(string(content))

	if padAddr.String() == keyHash {
		t.Fatal("pad and key-name domains produced the same hash")
	}
}

func TestParseAddress(t *testing.T) {
	addr := AddressOf([]byte("some pad bytes"))

	parsed, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != addr {
		t.Error("address did not round-trip through hex")
	}

	if _, err := ParseAddress("zz"); err == nil {
		t.Error("invalid hex accepted")
	}
	if _, err := ParseAddress("abcd"); err == nil {
		t.Error("short address accepted")
	}
}
