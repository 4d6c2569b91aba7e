package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

var errChunkerFail = errors.New("chunker failure")

// countingChunker splits content into fixed-size blake3-addressed
// blocks and records how often it runs. Content starting with fail
// triggers a failure.
type countingChunker struct {
	size  int
	fail  string
	calls atomic.Uint64
}

func (c *countingChunker) Chunk(_ context.Context, r io.Reader) ([]Chunk, error) {
	c.calls.Add(1)
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if c.fail != "" && strings.HasPrefix(string(data), c.fail) {
		return nil, errChunkerFail
	}

	var chunks []Chunk
	for off := 0; off < len(data); off += c.size {
		block := data[off:min(off+c.size, len(data))]
		sum := blake3.Sum256(block)
		chunks = append(chunks, Chunk{
			Offset: uint64(off),
			Pointer: ChunkPointer{
				Digest: digest.NewDigestFromEncoded("blake3", hex.EncodeToString(sum[:])),
				Size:   uint64(len(block)),
			},
		})
	}
	return chunks, nil
}

// scanPin keeps test mtimes stable across rewrites.
var scanPin = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func writeScanFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, scanPin, scanPin))
	return path
}

func TestScanRequiresChunker(t *testing.T) {
	t.Parallel()

	_, err := Scan(context.Background(), NewStore(), t.TempDir(), nil)
	require.Error(t, err)
}

func TestScanMissingDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "absent")
	_, err := Scan(context.Background(), NewStore(), dir, &countingChunker{size: 4})
	require.Error(t, err)
}

func TestScanFreshTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "a.txt", "hello world")
	writeScanFile(t, dir, "sub/b.txt", "nested")
	writeScanFile(t, dir, "sub/deep/c.txt", "bottom of the tree")

	store := NewStore()
	stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 4})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.Scanned)
	assert.Equal(t, uint64(3), stats.Stored)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Errors)
	assert.Equal(t, uint64(11+6+18), stats.Bytes)
	assert.Equal(t, 3, store.Index().Len())

	chunksByName := map[string]int{}
	for e := range store.Index().All() {
		chunksByName[e.Name] = len(e.Chunks)
	}
	assert.Equal(t, 3, chunksByName["a.txt"])
	assert.Equal(t, 2, chunksByName["sub/b.txt"])
	assert.Equal(t, 5, chunksByName["sub/deep/c.txt"])
}

func TestScanEmptyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "empty.txt", "")

	store := NewStore()
	stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 4})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Stored)
	assert.Zero(t, stats.Bytes)
	for e := range store.Index().All() {
		assert.Zero(t, e.Size)
		assert.Empty(t, e.Chunks)
	}
}

func TestScanRescanSkipsUnchanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "a.txt", "alpha content")
	writeScanFile(t, dir, "b.txt", "beta content")

	store := NewStore()
	ch := &countingChunker{size: 8}
	_, err := Scan(context.Background(), store, dir, ch)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ch.calls.Load())

	stats, err := Scan(context.Background(), store, dir, ch)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), stats.Scanned)
	assert.Zero(t, stats.Stored)
	assert.Equal(t, uint64(2), stats.Skipped)
	assert.Equal(t, uint64(2), ch.calls.Load(), "unchanged files must not be re-chunked")
	assert.Equal(t, 2, store.Index().Len())
}

func TestScanModifiedFileStoredAgain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScanFile(t, dir, "a.txt", "version one")
	writeScanFile(t, dir, "b.txt", "stable")

	store := NewStore()
	_, err := Scan(context.Background(), store, dir, &countingChunker{size: 4})
	require.NoError(t, err)

	// Same size, later mtime.
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	later := scanPin.Add(24 * time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 4})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Stored)
	assert.Equal(t, uint64(1), stats.Skipped)
	assert.Equal(t, 3, store.Index().Len(), "the superseded snapshot stays put")
}

func TestScanGrownFileStoredAgain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeScanFile(t, dir, "grow.txt", "0123456789")

	store := NewStore()
	_, err := Scan(context.Background(), store, dir, &countingChunker{size: 32})
	require.NoError(t, err)

	// One byte longer, mtime pinned back so only the size differs.
	require.NoError(t, os.WriteFile(path, []byte("0123456789!"), 0o644))
	require.NoError(t, os.Chtimes(path, scanPin, scanPin))

	stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 32})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Stored)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, 2, store.Index().Len())

	sizes := map[uint64]bool{}
	for e := range store.Index().All() {
		sizes[e.Size] = true
	}
	assert.True(t, sizes[10])
	assert.True(t, sizes[11])
}

func TestScanPerFileErrorsCounted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "good.txt", "fine content")
	writeScanFile(t, dir, "bad.txt", "POISON pill")

	store := NewStore()
	stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 4, fail: "POISON"})
	require.NoError(t, err, "per-file failures must not abort the scan")

	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(1), stats.Stored)
	assert.Equal(t, 1, store.Index().Len())
}

func TestScanFailFast(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "bad.txt", "POISON pill")

	ch := &countingChunker{size: 4, fail: "POISON"}
	_, err := Scan(context.Background(), NewStore(), dir, ch, ScanWithFailFast())
	require.ErrorIs(t, err, errChunkerFail)
}

func TestScanCanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScanFile(t, dir, "a.txt", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, NewStore(), dir, &countingChunker{size: 4})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScanWorkerCounts(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{-1, 1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			for i := range 20 {
				writeScanFile(t, dir, fmt.Sprintf("f%02d.txt", i), strings.Repeat("x", i+1))
			}

			store := NewStore()
			stats, err := Scan(context.Background(), store, dir, &countingChunker{size: 8}, ScanWithWorkers(workers))
			require.NoError(t, err)

			assert.Equal(t, uint64(20), stats.Stored)
			assert.Equal(t, 20, store.Index().Len())
		})
	}
}
