package cairn

import (
	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/meta"
)

// --- Re-exports from core ---

type (
	// Entry is an immutable snapshot of one file's observable state:
	// metadata plus its content-addressed chunk decomposition.
	Entry = core.Entry

	// Chunk is one element of a file's content decomposition.
	Chunk = core.Chunk

	// ChunkPointer identifies one stored chunk by content address.
	ChunkPointer = core.ChunkPointer

	// Store is a lightweight copyable handle over one shared
	// deduplication index.
	Store = core.Store

	// Index is the concurrent set of entries behind a Store.
	Index = core.Index

	// Chunker turns file content into content-addressed chunk
	// references. Implementations own boundary policy and storage.
	Chunker = core.Chunker

	// ScanStats summarizes one scan run.
	ScanStats = core.ScanStats

	// ScanOption configures a scan run.
	ScanOption = core.ScanOption
)

// FieldWriter is the sink half of the named-field protocol by which a
// collection persists itself into a metadata container.
type FieldWriter[T any] = core.FieldWriter[T]

// FieldReader is the source half of the named-field protocol.
type FieldReader[T any] = core.FieldReader[T]

// FilesField is the container field name a Store persists under.
const FilesField = core.FilesField

// NewStore returns a store handle over a fresh empty index.
var NewStore = core.NewStore

// NewEntryFromFile captures the current metadata of an open file into a
// chunk-free entry.
var NewEntryFromFile = core.NewEntryFromFile

// Scan options re-exported from core.
var (
	ScanWithWorkers  = core.ScanWithWorkers
	ScanWithFailFast = core.ScanWithFailFast
	ScanWithLogger   = core.ScanWithLogger
)

// --- Re-exports from meta ---

// CompressionTag identifies the compression applied to a container
// field payload.
type CompressionTag = meta.CompressionTag

// Compression constants.
const (
	CompressionNone = meta.CompressionNone
	CompressionLZ4  = meta.CompressionLZ4
	CompressionZstd = meta.CompressionZstd
)

// ParseCompressionTag parses a compression tag from its name.
var ParseCompressionTag = meta.ParseCompressionTag
