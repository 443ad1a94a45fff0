package fuse

import (
	"syscall"

	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/data/errors"
)

// Errno maps bridge errors onto the errno reported to the kernel.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, adbfs.ErrNotExist), errors.Is(err, adbfs.ErrReservedName):
		return syscall.ENOENT
	case errors.Is(err, adbfs.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, adbfs.ErrCrossDevice):
		return syscall.EXDEV
	case errors.Is(err, adbfs.ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, adbfs.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, adbfs.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, adbfs.ErrInvalidPath):
		return syscall.EINVAL
	case errors.Is(err, adbfs.ErrUnsupported):
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}
