package catalog

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/cairnstore/cairn/catalog/internal/fb"
	"github.com/cairnstore/cairn/core"
)

// Version is the catalog format version this package writes.
const Version uint32 = 1

// Catalog provides access to a parsed catalog buffer.
//
// Lookups binary search the name-sorted entry vector. A name can
// appear more than once when several snapshots of the same file
// coexist; duplicates sort oldest first.
type Catalog struct {
	data []byte
	root *fb.Catalog
}

// Build serializes entries into a catalog buffer. Entries are sorted
// by name, ties broken by mtime and then size. containerSum ties the
// catalog to the container payload it was derived from and may be nil.
func Build(entries []*core.Entry, containerSum []byte) []byte {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)

	builder := flatbuffers.NewBuilder(1024)

	// Tables must be built leaves first.
	entryOffsets := make([]flatbuffers.UOffsetT, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		entryOffsets[i] = appendEntry(builder, sorted[i])
	}

	fb.CatalogStartEntriesVector(builder, len(sorted))
	for i := len(entryOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(entryOffsets[i])
	}
	entriesOffset := builder.EndVector(len(sorted))

	var sumOffset flatbuffers.UOffsetT
	if len(containerSum) > 0 {
		fb.CatalogStartContainerSumVector(builder, len(containerSum))
		for i := len(containerSum) - 1; i >= 0; i-- {
			builder.PrependByte(containerSum[i])
		}
		sumOffset = builder.EndVector(len(containerSum))
	}

	fb.CatalogStart(builder)
	fb.CatalogAddVersion(builder, Version)
	if sumOffset != 0 {
		fb.CatalogAddContainerSum(builder, sumOffset)
	}
	fb.CatalogAddEntries(builder, entriesOffset)
	builder.Finish(fb.CatalogEnd(builder))

	return builder.FinishedBytes()
}

func compareEntries(a, b *core.Entry) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Secs, b.Secs); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Nanos, b.Nanos); c != 0 {
		return c
	}
	return cmp.Compare(a.Size, b.Size)
}

func appendEntry(builder *flatbuffers.Builder, e *core.Entry) flatbuffers.UOffsetT {
	nameOffset := builder.CreateString(e.Name)

	chunkOffsets := make([]flatbuffers.UOffsetT, len(e.Chunks))
	for i := len(e.Chunks) - 1; i >= 0; i-- {
		c := e.Chunks[i]
		digestOffset := builder.CreateString(string(c.Pointer.Digest))
		fb.ChunkStart(builder)
		fb.ChunkAddOffset(builder, c.Offset)
		fb.ChunkAddDigest(builder, digestOffset)
		fb.ChunkAddSize(builder, c.Pointer.Size)
		chunkOffsets[i] = fb.ChunkEnd(builder)
	}

	fb.EntryStartChunksVector(builder, len(e.Chunks))
	for i := len(chunkOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(chunkOffsets[i])
	}
	chunksOffset := builder.EndVector(len(e.Chunks))

	fb.EntryStart(builder)
	fb.EntryAddSecs(builder, e.Secs)
	fb.EntryAddNanos(builder, e.Nanos)
	fb.EntryAddMode(builder, uint32(e.Mode))
	fb.EntryAddUid(builder, e.UID)
	fb.EntryAddGid(builder, e.GID)
	fb.EntryAddSize(builder, e.Size)
	fb.EntryAddReadonly(builder, e.ReadOnly)
	fb.EntryAddName(builder, nameOffset)
	fb.EntryAddChunks(builder, chunksOffset)
	return fb.EntryEnd(builder)
}

// Load parses a catalog buffer.
//
// The provided data is retained by the catalog; callers must not
// modify it after calling Load.
func Load(data []byte) (cat *Catalog, err error) {
	defer func() {
		if r := recover(); r != nil {
			cat = nil
			err = fmt.Errorf("cairn: failed to parse catalog: %v", r)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("cairn: empty catalog data")
	}

	root := fb.GetRootAsCatalog(data, 0)
	if root == nil {
		return nil, errors.New("cairn: failed to parse catalog")
	}
	if v := root.Version(); v != Version {
		return nil, fmt.Errorf("cairn: unsupported catalog version %d", v)
	}

	return &Catalog{
		data: data,
		root: root,
	}, nil
}

// Version returns the format version of the catalog.
func (cat *Catalog) Version() uint32 {
	return cat.root.Version()
}

// ContainerSum returns the BLAKE3 sum of the container payload this
// catalog was built from. ok is false when no sum was recorded. The
// returned slice aliases the catalog buffer and must be treated as
// immutable.
func (cat *Catalog) ContainerSum() ([]byte, bool) {
	sum := cat.root.ContainerSumBytes()
	if len(sum) == 0 {
		return nil, false
	}
	return sum, true
}

// Len returns the number of entries in the catalog.
func (cat *Catalog) Len() int {
	return cat.root.EntriesLength()
}

// LookupView returns a read-only view of the first entry with the
// given name.
//
// The returned view is only valid while the catalog remains alive.
func (cat *Catalog) LookupView(name string) (EntryView, bool) {
	n := cat.root.EntriesLength()
	nameBytes := []byte(name)

	i := sort.Search(n, func(i int) bool {
		var fbEntry fb.Entry
		if !cat.root.Entries(&fbEntry, i) {
			return false
		}
		return bytes.Compare(fbEntry.Name(), nameBytes) >= 0
	})

	var fbEntry fb.Entry
	if i < n && cat.root.Entries(&fbEntry, i) && bytes.Equal(fbEntry.Name(), nameBytes) {
		return entryViewFromFlatBuffers(fbEntry), true
	}
	return EntryView{}, false
}

// Views returns an iterator over all entries as read-only views, in
// name order.
//
// The returned views are only valid while the catalog remains alive.
func (cat *Catalog) Views() iter.Seq[EntryView] {
	return func(yield func(EntryView) bool) {
		var fbEntry fb.Entry
		for i := range cat.root.EntriesLength() {
			if !cat.root.Entries(&fbEntry, i) {
				return
			}
			if !yield(entryViewFromFlatBuffers(fbEntry)) {
				return
			}
		}
	}
}

// ViewsWithPrefix returns an iterator over entries whose name has the
// given prefix, as read-only views.
//
// The returned views are only valid while the catalog remains alive.
func (cat *Catalog) ViewsWithPrefix(prefix string) iter.Seq[EntryView] {
	return func(yield func(EntryView) bool) {
		n := cat.root.EntriesLength()
		if n == 0 {
			return
		}
		prefixBytes := []byte(prefix)

		start := sort.Search(n, func(i int) bool {
			var fbEntry fb.Entry
			if !cat.root.Entries(&fbEntry, i) {
				return false
			}
			return bytes.Compare(fbEntry.Name(), prefixBytes) >= 0
		})

		var fbEntry fb.Entry
		for i := start; i < n; i++ {
			if !cat.root.Entries(&fbEntry, i) {
				return
			}
			if !bytes.HasPrefix(fbEntry.Name(), prefixBytes) {
				return
			}
			if !yield(entryViewFromFlatBuffers(fbEntry)) {
				return
			}
		}
	}
}
