package meta

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomBytes is deterministic and, being pseudorandom, incompressible.
func randomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(11, 42))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

func TestCompressionTagString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", CompressionNone.String())
	assert.Equal(t, "lz4", CompressionLZ4.String())
	assert.Equal(t, "zstd", CompressionZstd.String())
	assert.Equal(t, "unknown(9)", CompressionTag(9).String())
}

func TestParseCompressionTag(t *testing.T) {
	t.Parallel()

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}

	_, err := ParseCompressionTag("brotli")
	require.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Repeat("metadata container payload ", 64))

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := compress(raw, tag)
			require.NoError(t, err)
			if tag != CompressionNone {
				assert.Less(t, len(stored), len(raw))
			}

			back, err := decompress(stored, tag, len(raw))
			require.NoError(t, err)
			assert.Equal(t, raw, back)
		})
	}
}

func TestCompressIncompressible(t *testing.T) {
	t.Parallel()

	raw := randomBytes(1024)

	_, err := compress(raw, CompressionLZ4)
	require.ErrorIs(t, err, errIncompressible)

	_, err = compress(raw, CompressionZstd)
	require.ErrorIs(t, err, errIncompressible)
}

func TestCompressUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := compress([]byte("x"), CompressionTag(9))
	require.Error(t, err)

	_, err = decompress([]byte("x"), CompressionTag(9), 1)
	require.Error(t, err)
}

func TestDecompressSizeMismatch(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Repeat("abcd", 256))

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := compress(raw, tag)
			require.NoError(t, err)

			_, err = decompress(stored, tag, len(raw)+1)
			require.ErrorIs(t, err, ErrSizeMismatch)
		})
	}
}

func TestDecompressCorrupt(t *testing.T) {
	t.Parallel()

	raw := []byte(strings.Repeat("abcd", 256))

	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := compress(raw, tag)
			require.NoError(t, err)

			garbled := append([]byte(nil), stored...)
			for i := range garbled {
				garbled[i] ^= 0x5a
			}

			_, err = decompress(garbled, tag, len(raw))
			require.Error(t, err)
		})
	}
}
