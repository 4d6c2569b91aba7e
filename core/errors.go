package core

import (
	"errors"

	"github.com/cairnstore/cairn/core/internal/platform"
)

// Sentinel errors for entry construction and scanning.
var (
	// ErrClock is returned when a file's modification time cannot be
	// normalized to the Unix epoch (it predates the epoch, or the
	// platform reported no usable timestamp).
	ErrClock = errors.New("cairn: modification time predates the unix epoch")

	// ErrSymlink is returned when a scan encounters a symbolic link
	// where a regular file is required.
	ErrSymlink = platform.ErrSymlink
)
