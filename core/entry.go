package core

import (
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/cairnstore/cairn/core/internal/platform"
	"github.com/cairnstore/cairn/internal/codec"
)

// ChunkPointer identifies one stored chunk by content address.
//
// Pointers are plain values: two files whose bytes decompose into
// identical chunks carry equal pointers, which is what makes the
// chunk store deduplicate. The index never dereferences a pointer.
type ChunkPointer struct {
	// Digest is the content address of the chunk bytes.
	Digest digest.Digest

	// Size is the uncompressed chunk length in bytes.
	Size uint64
}

// Chunk is one element of a file's content decomposition.
type Chunk struct {
	// Offset is the byte position of the chunk within the file.
	Offset uint64

	// Pointer addresses the stored chunk content.
	Pointer ChunkPointer
}

// Entry is an immutable snapshot of one file's observable state at scan
// time: metadata plus the ordered chunk decomposition of its content.
//
// Two entries are equal only when every field matches exactly, chunk
// list included. A file whose content is unchanged but whose metadata
// drifted is a different Entry and will be captured again.
//
// Callers must not modify an Entry after handing it to a Store.
type Entry struct {
	// Secs is the modification time in whole seconds since the Unix epoch.
	Secs uint64

	// Nanos is the sub-second remainder of the modification time.
	Nanos uint32

	// Mode holds the permission bits. Zero on systems without a POSIX
	// permission model.
	Mode fs.FileMode

	// UID is the owning user ID, zero where ownership is not exposed.
	UID uint32

	// GID is the owning group ID, zero where ownership is not exposed.
	GID uint32

	// Size is the file length in bytes.
	Size uint64

	// ReadOnly reports whether the permission bits deny writing.
	ReadOnly bool

	// Name is the path the file was observed under.
	Name string

	// Chunks is the ordered (offset, pointer) decomposition of the file
	// content. Empty until chunking completes.
	Chunks []Chunk
}

// NewEntryFromFile captures the current metadata of an open file.
//
// The returned entry has no chunks; attach them with WithChunks once
// chunking completes. No file content is read. A modification time
// before the Unix epoch reports ErrClock.
func NewEntryFromFile(f fs.File, name string) (*Entry, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.Size() < 0 {
		return nil, fmt.Errorf("negative file size: %s", name)
	}

	secs, nanos, err := unixMtime(info.ModTime())
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", name, err)
	}

	uid, gid := platform.FileOwner(info)
	return &Entry{
		Secs:     secs,
		Nanos:    nanos,
		Mode:     platform.FilePerm(info),
		UID:      uid,
		GID:      gid,
		Size:     uint64(info.Size()),
		ReadOnly: info.Mode().Perm()&0o222 == 0,
		Name:     name,
	}, nil
}

// unixMtime normalizes a modification time to the Unix epoch.
func unixMtime(t time.Time) (secs uint64, nanos uint32, err error) {
	if t.Before(time.Unix(0, 0)) {
		return 0, 0, ErrClock
	}
	return uint64(t.Unix()), uint32(t.Nanosecond()), nil
}

// WithChunks returns a copy of e carrying the final chunk list.
func (e *Entry) WithChunks(chunks []Chunk) *Entry {
	ne := *e
	if len(chunks) == 0 {
		ne.Chunks = nil
	} else {
		ne.Chunks = slices.Clone(chunks)
	}
	return &ne
}

// ModTime reassembles the modification time from Secs and Nanos.
func (e *Entry) ModTime() time.Time {
	return time.Unix(int64(e.Secs), int64(e.Nanos))
}

// Equal reports whether e and other match in every field, chunks included.
func (e *Entry) Equal(other *Entry) bool {
	return entryKey(e) == entryKey(other)
}

// entryKey returns the canonical byte form that defines entry identity:
// the deterministic CBOR encoding with an empty chunk list normalized
// to nil so logically equal values share one encoding.
func entryKey(e *Entry) string {
	k := *e
	if len(k.Chunks) == 0 {
		k.Chunks = nil
	}
	b, err := codec.Marshal(&k)
	if err != nil {
		// Marshal does not fail for Entry's fixed field types.
		panic("cairn: encode entry key: " + err.Error())
	}
	return string(b)
}
