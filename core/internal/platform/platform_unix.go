//go:build unix

package platform

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// ErrSymlink reports an attempt to open a symbolic link where a
// regular file is required.
var ErrSymlink = errors.New("symbolic links not supported")

// OpenFileNoFollow opens name under root for reading, refusing to
// follow a symlink in the final path component.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	return f, nil
}

// FileOwner returns the owning user and group recorded for the file.
func FileOwner(info fs.FileInfo) (uid, gid uint32) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Uid, stat.Gid
	}
	return 0, 0
}

// FilePerm returns the permission bits recorded for the file.
func FilePerm(info fs.FileInfo) fs.FileMode {
	return info.Mode().Perm()
}
