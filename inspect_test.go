package cairn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/testutil"
)

// dedupedEntries returns three entries totalling 48 bytes whose four
// chunk references share two distinct content addresses.
func dedupedEntries() []*Entry {
	shared := testutil.BlockPointer([]byte("shared block"), 16)
	unique := testutil.BlockPointer([]byte("unique block"), 16)

	a := testutil.Entry(0)
	a.Size = 16
	a.Chunks = []core.Chunk{{Offset: 0, Pointer: shared}}

	b := testutil.Entry(1)
	b.Size = 16
	b.Chunks = []core.Chunk{{Offset: 0, Pointer: shared}}

	c := testutil.Entry(2)
	c.Size = 16
	c.Chunks = []core.Chunk{
		{Offset: 0, Pointer: shared},
		{Offset: 8, Pointer: unique},
	}

	return []*Entry{a, b, c}
}

func TestInspectMissingDir(t *testing.T) {
	t.Parallel()

	_, err := Inspect(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestInspectUncommittedStash(t *testing.T) {
	t.Parallel()

	result, err := Inspect(t.TempDir())
	require.NoError(t, err)

	assert.Zero(t, result.FileCount())
	assert.Zero(t, result.TotalSize())
	assert.Zero(t, result.ChunkCount())
	assert.Zero(t, result.UniqueChunks())
	assert.False(t, result.CatalogFresh())
}

func TestInspectStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        []Option
		wantCatalog bool
	}{
		{"through catalog", nil, true},
		{"through container", []Option{WithoutCatalog()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			stash, err := Open(dir, tt.opts...)
			require.NoError(t, err)
			for _, e := range dedupedEntries() {
				stash.Store().Push(e)
			}
			require.NoError(t, stash.Commit())

			result, err := stash.Inspect()
			require.NoError(t, err)

			assert.Equal(t, tt.wantCatalog, result.CatalogFresh())
			assert.Equal(t, 3, result.FileCount())
			assert.Equal(t, uint64(48), result.TotalSize())
			assert.Equal(t, 4, result.ChunkCount())
			assert.Equal(t, 2, result.UniqueChunks(),
				"chunks shared between snapshots count once")
		})
	}
}

func TestInspectStaleCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stash, err := Open(dir)
	require.NoError(t, err)
	stash.Store().Push(testutil.Entry(0))
	require.NoError(t, stash.Commit())

	stale, err := os.ReadFile(filepath.Join(dir, CatalogName))
	require.NoError(t, err)

	stash.Store().Push(testutil.Entry(1))
	require.NoError(t, stash.Commit())

	// Put the first commit's catalog back; it no longer matches the
	// container.
	require.NoError(t, os.WriteFile(filepath.Join(dir, CatalogName), stale, 0o644))

	result, err := Inspect(dir)
	require.NoError(t, err)
	assert.False(t, result.CatalogFresh(), "a superseded catalog must not be trusted")
	assert.Equal(t, 2, result.FileCount(), "counts come from the container, not the stale catalog")
}

func TestInspectGarbledCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stash, err := Open(dir)
	require.NoError(t, err)
	stash.Store().Push(testutil.Entry(0))
	require.NoError(t, stash.Commit())

	require.NoError(t, os.WriteFile(filepath.Join(dir, CatalogName), []byte{0xde, 0xad}, 0o644))

	result, err := Inspect(dir)
	require.NoError(t, err, "a broken catalog only costs the fast path")
	assert.False(t, result.CatalogFresh())
	assert.Equal(t, 1, result.FileCount())
}

func TestInspectCorruptContainer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stash, err := Open(dir)
	require.NoError(t, err)
	stash.Store().Push(testutil.Entry(0))
	require.NoError(t, stash.Commit())

	path := filepath.Join(dir, ContainerName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Inspect(dir)
	require.ErrorIs(t, err, ErrChecksum,
		"a corrupt container reports a field-level failure, not empty stats")
}
