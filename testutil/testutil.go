// Package testutil provides shared fixtures for cairn tests:
// deterministic entries, on-disk file trees with pinned timestamps, and
// a fixed-size chunker addressing blocks with BLAKE3.
package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"

	"github.com/cairnstore/cairn/core"
)

// PinnedTime keeps fixture modification times stable across rewrites,
// so rescans of an unchanged tree read as unchanged.
var PinnedTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Entry returns the i-th deterministic test entry. Distinct i produce
// entries differing in name, size, mtime, and chunk content.
func Entry(i int) *core.Entry {
	size := uint64(64 + i)
	return &core.Entry{
		Secs:  1700000000 + uint64(i),
		Nanos: uint32(i),
		Mode:  0o644,
		UID:   1000,
		GID:   1000,
		Size:  size,
		Name:  fmt.Sprintf("tree/file-%04d.txt", i),
		Chunks: []core.Chunk{{
			Offset:  0,
			Pointer: BlockPointer([]byte(fmt.Sprintf("content-%04d", i)), size),
		}},
	}
}

// Entries returns n distinct deterministic entries.
func Entries(n int) []*core.Entry {
	entries := make([]*core.Entry, n)
	for i := range entries {
		entries[i] = Entry(i)
	}
	return entries
}

// BlockPointer returns the content address a FixedChunker would assign
// to block, carrying size as the recorded chunk length.
func BlockPointer(block []byte, size uint64) core.ChunkPointer {
	sum := blake3.Sum256(block)
	return core.ChunkPointer{
		Digest: digest.NewDigestFromEncoded("blake3", hex.EncodeToString(sum[:])),
		Size:   size,
	}
}

// WriteTree writes the files of spec under dir. Keys are slash paths
// relative to dir, values are file contents. Parent directories are
// created and every mtime is pinned to PinnedTime.
func WriteTree(tb testing.TB, dir string, spec map[string]string) {
	tb.Helper()

	for name, content := range spec {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatalf("create tree dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			tb.Fatalf("write tree file %s: %v", name, err)
		}
		if err := os.Chtimes(path, PinnedTime, PinnedTime); err != nil {
			tb.Fatalf("pin mtime of %s: %v", name, err)
		}
	}
}

// FixedChunker splits content into fixed-size blocks, each addressed by
// the BLAKE3 digest of its bytes. It stores nothing; tests use it where
// a real chunking/storage subsystem would plug in.
type FixedChunker struct {
	// Size is the block length in bytes. Values < 1 use 4 KiB.
	Size int
}

// Chunk implements core.Chunker.
func (c FixedChunker) Chunk(ctx context.Context, r io.Reader) ([]core.Chunk, error) {
	size := c.Size
	if size < 1 {
		size = 4096
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var chunks []core.Chunk
	for off := 0; off < len(data); off += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block := data[off:min(off+size, len(data))]
		chunks = append(chunks, core.Chunk{
			Offset:  uint64(off),
			Pointer: BlockPointer(block, uint64(len(block))),
		})
	}
	return chunks, nil
}
