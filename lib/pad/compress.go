// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package pad

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm applied to a
// pad's payload. The tag is recorded in the pad header, so each pad
// is independently decodable.
type CompressionTag uint8

const (
	// CompressionNone indicates an uncompressed payload. Used for
	// already-compressed content where compression adds CPU cost
	// without reducing size.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression. Fast default
	// for mixed content.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd indicates zstd compression at the default
	// level. Better ratio for text-heavy values at higher CPU cost.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (t CompressionTag) String() string {
	switch t {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseCompressionTag parses a compression tag from its string form.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// errIncompressible is returned by compress when the output would be
// at least as large as the input. Callers fall back to storing the
// payload uncompressed.
var errIncompressible = errors.New("pad: payload is incompressible")

// zstdEncoder and zstdDecoder are shared across all pads. Both are
// safe for concurrent use via EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic("pad: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("pad: zstd decoder initialization failed: " + err.Error())
	}
}

// compress compresses data with the given algorithm. Returns
// errIncompressible if the result would not be smaller than the
// input.
func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		compressed := make([]byte, lz4.CompressBlockBound(len(data)))
		var compressor lz4.Compressor
		n, err := compressor.CompressBlock(data, compressed)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression: %w", err)
		}
		// CompressBlock returns 0 when the data is incompressible.
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return compressed[:n], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unknown compression tag: %d", tag)
	}
}

// decompress reverses compress. rawLen is the expected uncompressed
// length from the pad header; it bounds the output buffer and is
// verified against the actual result.
func decompress(data []byte, tag CompressionTag, rawLen int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("lz4 decompression produced %d bytes, want %d", n, rawLen)
		}
		return out, nil

	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("zstd decompression produced %d bytes, want %d", len(out), rawLen)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown compression tag: %d", tag)
	}
}

// compressWithFallback attempts to compress data with the given
// algorithm. Incompressible payloads fall back to CompressionNone
// with the original bytes.
func compressWithFallback(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	if tag == CompressionNone {
		return data, CompressionNone, nil
	}
	compressed, err := compress(data, tag)
	if err != nil {
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}
