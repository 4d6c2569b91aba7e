package meta

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression applied to a field payload.
// Tags are stored in the container directory; the values are format
// constants and must not change.
type CompressionTag uint8

const (
	// CompressionNone stores payloads uncompressed. Also the fallback
	// when compression fails to shrink a payload.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 uses LZ4 block compression. Fast decode, modest
	// ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd uses zstd at the default level. Best ratio for
	// the CBOR record streams containers hold.
	CompressionZstd CompressionTag = 2
)

// String returns the tag name accepted by ParseCompressionTag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a tag from its name.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("cairn: unknown compression tag %q", name)
	}
}

// errIncompressible signals that compression would not shrink the
// payload; the caller stores it raw instead.
var errIncompressible = errors.New("incompressible payload")

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("meta: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("meta: zstd decoder initialization failed: " + err.Error())
	}
}

// compress encodes raw under the requested tag, reporting
// errIncompressible when the output would not shrink.
func compress(raw []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return raw, nil
	case CompressionLZ4:
		return compressLZ4(raw)
	case CompressionZstd:
		return compressZstd(raw)
	default:
		return nil, fmt.Errorf("cairn: unsupported compression tag %d", tag)
	}
}

// decompress recovers exactly rawLen bytes from stored.
func decompress(stored []byte, tag CompressionTag, rawLen int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(stored) != rawLen {
			return nil, fmt.Errorf("%w: stored %d bytes, directory says %d",
				ErrSizeMismatch, len(stored), rawLen)
		}
		return stored, nil
	case CompressionLZ4:
		return decompressLZ4(stored, rawLen)
	case CompressionZstd:
		return decompressZstd(stored, rawLen)
	default:
		return nil, fmt.Errorf("cairn: unsupported compression tag %d", tag)
	}
}

func compressLZ4(raw []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	written, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports incompressible input as zero bytes written.
	if written == 0 || written >= len(raw) {
		return nil, errIncompressible
	}
	return dst[:written], nil
}

func decompressLZ4(stored []byte, rawLen int) ([]byte, error) {
	dst := make([]byte, rawLen)
	read, err := lz4.UncompressBlock(stored, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != rawLen {
		return nil, fmt.Errorf("%w: recovered %d bytes, directory says %d",
			ErrSizeMismatch, read, rawLen)
	}
	return dst, nil
}

func compressZstd(raw []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(raw, nil)
	if len(compressed) >= len(raw) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(stored []byte, rawLen int) ([]byte, error) {
	raw, err := zstdDecoder.DecodeAll(stored, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: recovered %d bytes, directory says %d",
			ErrSizeMismatch, len(raw), rawLen)
	}
	return raw, nil
}
