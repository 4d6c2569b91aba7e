package cairn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/cairnstore/cairn/catalog"
	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/meta"
)

// InspectResult summarizes the committed state of a stash.
//
// Aggregate statistics are computed on first use and cached.
type InspectResult struct {
	cat     *catalog.Catalog // fresh catalog, when available
	entries []*core.Entry    // decoded container records otherwise

	statsOnce    sync.Once
	totalSize    uint64
	chunkCount   int
	uniqueChunks int
}

// CatalogFresh reports whether the stash's catalog sidecar matches the
// committed container. A stale or missing catalog only costs speed:
// inspection falls back to decoding the container.
func (r *InspectResult) CatalogFresh() bool {
	return r.cat != nil
}

// FileCount returns the number of captured snapshots.
func (r *InspectResult) FileCount() int {
	if r.cat != nil {
		return r.cat.Len()
	}
	return len(r.entries)
}

// TotalSize returns the sum of all captured file sizes in bytes.
// Computed on first call; the result is cached.
func (r *InspectResult) TotalSize() uint64 {
	r.computeStats()
	return r.totalSize
}

// ChunkCount returns the total number of chunk references across all
// snapshots. Computed on first call; the result is cached.
func (r *InspectResult) ChunkCount() int {
	r.computeStats()
	return r.chunkCount
}

// UniqueChunks returns the number of distinct content addresses across
// all snapshots; the gap to ChunkCount is content shared between
// captures. Computed on first call; the result is cached.
func (r *InspectResult) UniqueChunks() int {
	r.computeStats()
	return r.uniqueChunks
}

// Entries returns an iterator over the captured snapshots. Results
// backed by a fresh catalog yield in name order; container-backed
// results yield in capture order.
func (r *InspectResult) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		if r.cat != nil {
			for view := range r.cat.Views() {
				if !yield(view.Entry()) {
					return
				}
			}
			return
		}
		for _, e := range r.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// computeStats aggregates over whichever source the result carries.
func (r *InspectResult) computeStats() {
	r.statsOnce.Do(func() {
		seen := make(map[ChunkPointer]struct{})
		if r.cat != nil {
			for view := range r.cat.Views() {
				r.totalSize += view.Size()
				for c := range view.Chunks() {
					r.chunkCount++
					seen[c.Pointer] = struct{}{}
				}
			}
		} else {
			for _, e := range r.entries {
				r.totalSize += e.Size
				for _, c := range e.Chunks {
					r.chunkCount++
					seen[c.Pointer] = struct{}{}
				}
			}
		}
		r.uniqueChunks = len(seen)
	})
}

// Inspect summarizes the committed state of the stash directory without
// opening a store. When the catalog sidecar is fresh the container is
// not decoded at all; otherwise the files field is read directly. A
// never-committed stash inspects as empty.
func Inspect(dir string) (*InspectResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, ContainerName))
	if errors.Is(err, fs.ErrNotExist) {
		// The directory itself must exist even when the container does
		// not.
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, statErr
		}
		return &InspectResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(data)
	if cat := loadFreshCatalog(filepath.Join(dir, CatalogName), sum[:]); cat != nil {
		return &InspectResult{cat: cat}, nil
	}

	r, err := meta.NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", dir, err)
	}
	var entries []*core.Entry
	err = meta.ReadField(r, core.FilesField, func(fr core.FieldReader[*core.Entry]) error {
		for {
			e, err := fr.ReadNext()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", dir, err)
	}
	return &InspectResult{entries: entries}, nil
}

// Inspect summarizes the stash's committed on-disk state. Entries
// pushed since the last commit are not reflected.
func (s *Stash) Inspect() (*InspectResult, error) {
	return Inspect(s.dir)
}

// loadFreshCatalog returns the catalog at path when it parses cleanly
// and its recorded container sum matches wantSum, nil otherwise.
func loadFreshCatalog(path string, wantSum []byte) *catalog.Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	cat, err := catalog.Load(data)
	if err != nil {
		return nil
	}
	sum, ok := cat.ContainerSum()
	if !ok || !bytes.Equal(sum, wantSum) {
		return nil
	}
	return cat
}
