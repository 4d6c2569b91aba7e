package catalog

import (
	"io/fs"
	"iter"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/cairnstore/cairn/catalog/internal/fb"
	"github.com/cairnstore/cairn/core"
)

// EntryView provides a read-only view of a catalog entry.
//
// The byte slices returned by NameBytes alias the catalog buffer and
// must be treated as immutable. A view is only valid while the Catalog
// that produced it remains alive.
type EntryView struct {
	entry fb.Entry
}

// NameBytes returns the name bytes from the catalog buffer.
func (ev EntryView) NameBytes() []byte {
	return ev.entry.Name()
}

// Name returns the name as a string.
func (ev EntryView) Name() string {
	return string(ev.entry.Name())
}

// Size returns the file size in bytes.
func (ev EntryView) Size() uint64 {
	return ev.entry.Size()
}

// Mode returns the file permission bits.
func (ev EntryView) Mode() fs.FileMode {
	return fs.FileMode(ev.entry.Mode())
}

// UID returns the file owner's user ID.
func (ev EntryView) UID() uint32 {
	return ev.entry.Uid()
}

// GID returns the file owner's group ID.
func (ev EntryView) GID() uint32 {
	return ev.entry.Gid()
}

// ReadOnly reports whether the file had no write permission bits.
func (ev EntryView) ReadOnly() bool {
	return ev.entry.Readonly()
}

// Secs returns the modification time in whole seconds since the Unix
// epoch.
func (ev EntryView) Secs() uint64 {
	return ev.entry.Secs()
}

// Nanos returns the sub-second remainder of the modification time.
func (ev EntryView) Nanos() uint32 {
	return ev.entry.Nanos()
}

// ModTime returns the modification time.
func (ev EntryView) ModTime() time.Time {
	return time.Unix(int64(ev.entry.Secs()), int64(ev.entry.Nanos()))
}

// ChunkCount returns the number of chunks backing the file.
func (ev EntryView) ChunkCount() int {
	return ev.entry.ChunksLength()
}

// Chunks returns an iterator over the file's chunk decomposition in
// offset order.
func (ev EntryView) Chunks() iter.Seq[core.Chunk] {
	return func(yield func(core.Chunk) bool) {
		var fbChunk fb.Chunk
		for i := range ev.entry.ChunksLength() {
			if !ev.entry.Chunks(&fbChunk, i) {
				return
			}
			chunk := core.Chunk{
				Offset: fbChunk.Offset(),
				Pointer: core.ChunkPointer{
					Digest: digest.Digest(fbChunk.Digest()),
					Size:   fbChunk.Size(),
				},
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Entry returns a fully copied Entry.
func (ev EntryView) Entry() *core.Entry {
	var chunks []core.Chunk
	if n := ev.entry.ChunksLength(); n > 0 {
		chunks = make([]core.Chunk, 0, n)
		var fbChunk fb.Chunk
		for i := range n {
			if !ev.entry.Chunks(&fbChunk, i) {
				break
			}
			chunks = append(chunks, core.Chunk{
				Offset: fbChunk.Offset(),
				Pointer: core.ChunkPointer{
					Digest: digest.Digest(fbChunk.Digest()),
					Size:   fbChunk.Size(),
				},
			})
		}
	}

	return &core.Entry{
		Secs:     ev.entry.Secs(),
		Nanos:    ev.entry.Nanos(),
		Mode:     fs.FileMode(ev.entry.Mode()),
		UID:      ev.entry.Uid(),
		GID:      ev.entry.Gid(),
		Size:     ev.entry.Size(),
		ReadOnly: ev.entry.Readonly(),
		Name:     string(ev.entry.Name()),
		Chunks:   chunks,
	}
}

// entryViewFromFlatBuffers creates an EntryView from a FlatBuffers
// Entry.
func entryViewFromFlatBuffers(entry fb.Entry) EntryView {
	return EntryView{entry: entry}
}
