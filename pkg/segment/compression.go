package segment

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/orneryd/webgraph/pkg/config"
)

// zstd encoders/decoders are expensive to construct and safe to reuse
// across goroutines; a single pair is shared by every segment in the
// process, matching klauspost/compress's own recommended usage.
var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder

	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func sharedEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil)
	})
	return zstdEnc
}

func sharedDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

// compress encodes data under the given compression variant.
func compress(c config.Compression, data []byte) ([]byte, error) {
	switch c {
	case config.CompressionNone:
		return data, nil
	case config.CompressionZstd:
		return sharedEncoder().EncodeAll(data, make([]byte, 0, len(data))), nil
	default:
		return nil, fmt.Errorf("segment: unsupported compression %v", c)
	}
}

// decompress reverses compress.
func decompress(c config.Compression, data []byte) ([]byte, error) {
	switch c {
	case config.CompressionNone:
		return data, nil
	case config.CompressionZstd:
		out, err := sharedDecoder().DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("segment: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("segment: unsupported compression %v", c)
	}
}

// equalBytes reports whether a and b hold the same bytes; used by
// verifyChecksum.
func equalBytes(a, b []byte) bool {
	return bytes.Equal(a, b)
}
