package meta

import "errors"

var (
	// ErrBadMagic means the file does not start with the container
	// magic.
	ErrBadMagic = errors.New("cairn: not a metadata container")

	// ErrVersion means the container was written by an unsupported
	// format version.
	ErrVersion = errors.New("cairn: unsupported container version")

	// ErrTruncated means the file ends before the directory or a field
	// payload it declares.
	ErrTruncated = errors.New("cairn: truncated container")

	// ErrFieldNotFound means the directory has no field with the
	// requested key.
	ErrFieldNotFound = errors.New("cairn: field not found")

	// ErrDuplicateField means two fields share a key.
	ErrDuplicateField = errors.New("cairn: duplicate field")

	// ErrChecksum means a stored payload does not match its recorded
	// checksum.
	ErrChecksum = errors.New("cairn: field checksum mismatch")

	// ErrSizeMismatch means a payload decompressed to a length other
	// than the directory's raw length.
	ErrSizeMismatch = errors.New("cairn: decompressed size mismatch")

	// ErrCorrupt means a record inside a verified payload failed to
	// decode.
	ErrCorrupt = errors.New("cairn: corrupt field record")
)
