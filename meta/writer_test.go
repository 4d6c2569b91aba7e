package meta

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnstore/cairn/core"
)

func containerEntry(i int) *core.Entry {
	size := uint64(100 + i)
	return &core.Entry{
		Secs:  1700000000 + uint64(i),
		Nanos: uint32(i),
		Mode:  0o644,
		UID:   1000,
		GID:   1000,
		Size:  size,
		Name:  fmt.Sprintf("dir/file-%03d.txt", i),
		Chunks: []core.Chunk{{
			Pointer: core.ChunkPointer{
				Digest: digest.Digest(fmt.Sprintf("blake3:%064x", i)),
				Size:   size,
			},
		}},
	}
}

func seedStore(n int) core.Store {
	s := core.NewStore()
	for i := range n {
		s.Push(containerEntry(i))
	}
	return s
}

func TestWriteFieldDuplicateKey(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	src := seedStore(2)
	require.NoError(t, WriteField(w, src.FieldKey(), src.SerializeField))

	err := WriteField(w, src.FieldKey(), src.SerializeField)
	require.ErrorIs(t, err, ErrDuplicateField)
	assert.Equal(t, []string{"files"}, w.Fields())
}

func TestWriteFieldFnError(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	boom := fmt.Errorf("producer failed")
	err := WriteField(w, "files", func(core.FieldWriter[*core.Entry]) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, w.Fields(), "a failed field must not be sealed")

	// The key stays free for a clean retry.
	src := seedStore(1)
	require.NoError(t, WriteField(w, src.FieldKey(), src.SerializeField))
	assert.Equal(t, []string{"files"}, w.Fields())
}

func TestWriterUnknownCompression(t *testing.T) {
	t.Parallel()

	w := NewWriter(WriterWithCompression(CompressionTag(9)))
	src := seedStore(1)
	err := WriteField(w, src.FieldKey(), src.SerializeField)
	require.Error(t, err)
}

func TestWriterFlushLayout(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	src := seedStore(4)
	require.NoError(t, WriteField(w, src.FieldKey(), src.SerializeField))
	require.NoError(t, WriteField(w, "labels", func(fw core.FieldWriter[string]) error {
		return fw.WriteNext("alpha")
	}))

	var buf bytes.Buffer
	require.NoError(t, w.Flush(&buf))
	data := buf.Bytes()

	require.Greater(t, len(data), headerSize)
	assert.Equal(t, magic, string(data[:len(magic)]))

	r, err := NewReader(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"files", "labels"}, r.Fields())

	dir := r.Directory()
	require.Len(t, dir, 2)
	assert.Equal(t, uint64(4), dir[0].Records)
	assert.Equal(t, uint64(1), dir[1].Records)
	assert.Equal(t, dir[0].Length, dir[1].Offset, "payloads are packed back to back")
}

func TestWriterFlushTwiceIdentical(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	src := seedStore(3)
	require.NoError(t, WriteField(w, src.FieldKey(), src.SerializeField))

	var first, second bytes.Buffer
	require.NoError(t, w.Flush(&first))
	require.NoError(t, w.Flush(&second))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWriterCompressionFallback(t *testing.T) {
	t.Parallel()

	w := NewWriter(WriterWithCompression(CompressionZstd))
	require.NoError(t, WriteField(w, "noise", func(fw core.FieldWriter[[]byte]) error {
		return fw.WriteNext(randomBytes(512))
	}))

	var buf bytes.Buffer
	require.NoError(t, w.Flush(&buf))

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)

	dir := r.Directory()
	require.Len(t, dir, 1)
	assert.Equal(t, CompressionNone, dir[0].Compression,
		"incompressible payloads are stored raw")
	assert.Equal(t, dir[0].RawLength, dir[0].Length)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.cairn")

	w := NewWriter()
	src := seedStore(3)
	require.NoError(t, WriteField(w, src.FieldKey(), src.SerializeField))
	require.NoError(t, w.WriteFile(path))

	listing, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, listing, 1, "no temp file litter")
	assert.Equal(t, "index.cairn", listing[0].Name())

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"files"}, r.Fields())
}

func TestWriteFileReplacesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.cairn")

	first := NewWriter()
	src := seedStore(1)
	require.NoError(t, WriteField(first, src.FieldKey(), src.SerializeField))
	require.NoError(t, first.WriteFile(path))

	second := NewWriter()
	bigger := seedStore(5)
	require.NoError(t, WriteField(second, bigger.FieldKey(), bigger.SerializeField))
	require.NoError(t, second.WriteFile(path))

	r, err := Open(path)
	require.NoError(t, err)
	n, err := r.Len("files")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}
