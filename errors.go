package cairn

import (
	"github.com/cairnstore/cairn/core"
	"github.com/cairnstore/cairn/meta"
)

// Errors re-exported from core.
var (
	// ErrClock is returned when a file's modification time cannot be
	// normalized to the Unix epoch.
	ErrClock = core.ErrClock

	// ErrSymlink is returned when a scan encounters a symbolic link
	// where a regular file is required.
	ErrSymlink = core.ErrSymlink
)

// Errors re-exported from meta.
var (
	// ErrBadMagic is returned when a file is not a metadata container.
	ErrBadMagic = meta.ErrBadMagic

	// ErrVersion is returned when a container was written by an
	// unsupported format version.
	ErrVersion = meta.ErrVersion

	// ErrTruncated is returned when a container ends before the
	// directory or a field payload it declares.
	ErrTruncated = meta.ErrTruncated

	// ErrFieldNotFound is returned when a container has no field with
	// the requested key.
	ErrFieldNotFound = meta.ErrFieldNotFound

	// ErrDuplicateField is returned when two container fields share a
	// key.
	ErrDuplicateField = meta.ErrDuplicateField

	// ErrChecksum is returned when a stored field payload does not
	// match its recorded checksum.
	ErrChecksum = meta.ErrChecksum

	// ErrSizeMismatch is returned when a field payload decompresses to
	// an unexpected length.
	ErrSizeMismatch = meta.ErrSizeMismatch

	// ErrCorrupt is returned when a record inside a verified field
	// payload fails to decode.
	ErrCorrupt = meta.ErrCorrupt
)
