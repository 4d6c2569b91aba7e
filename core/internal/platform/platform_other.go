//go:build !unix

package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink reports an attempt to open a symbolic link where a
// regular file is required.
var ErrSymlink = errors.New("symbolic links not supported")

// OpenFileNoFollow opens name under root for reading, refusing to
// follow a symlink in the final path component.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	return root.Open(name)
}

// FileOwner reports the owning user and group of the file. Systems
// without a POSIX ownership model report zero for both.
func FileOwner(info fs.FileInfo) (uid, gid uint32) {
	return 0, 0
}

// FilePerm returns the permission bits recorded for the file. Systems
// without a POSIX permission model record none; the portable read-only
// flag is derived from fs.FileMode by the caller instead.
func FilePerm(info fs.FileInfo) fs.FileMode {
	return 0
}
