package device

import (
	"io/fs"
	"time"
)

// Unix mode bits as reported by remote stat calls.
const (
	ModeTypeMask  uint32 = 0o170000
	ModeSocket    uint32 = 0o140000
	ModeSymlink   uint32 = 0o120000
	ModeRegular   uint32 = 0o100000
	ModeBlock     uint32 = 0o060000
	ModeDirectory uint32 = 0o040000
	ModeChar      uint32 = 0o020000
	ModeFifo      uint32 = 0o010000
)

// FileInfo is the remote metadata shape shared by all transports.
type FileInfo struct {
	FileName    string
	FileSize    int64
	FileMode    fs.FileMode
	FileModTime time.Time
}

var _ fs.FileInfo = (*FileInfo)(nil)

// NewFileInfo creates a FileInfo from raw unix stat values.
// An mtime of 0 results in a zero ModTime.
func NewFileInfo(name string, mode uint32, size int64, mtime int64) *FileInfo {
	info := &FileInfo{
		FileName: name,
		FileSize: size,
		FileMode: FileModeFromUnix(mode),
	}
	if mtime > 0 {
		info.FileModTime = time.Unix(mtime, 0)
	}

	return info
}

func (fi *FileInfo) Name() string       { return fi.FileName }
func (fi *FileInfo) Size() int64        { return fi.FileSize }
func (fi *FileInfo) Mode() fs.FileMode  { return fi.FileMode }
func (fi *FileInfo) ModTime() time.Time { return fi.FileModTime }
func (fi *FileInfo) IsDir() bool        { return fi.FileMode.IsDir() }
func (fi *FileInfo) Sys() any           { return nil }

// FileModeFromUnix converts unix st_mode bits into an fs.FileMode.
func FileModeFromUnix(mode uint32) fs.FileMode {
	perm := fs.FileMode(mode & 0o777)

	switch mode & ModeTypeMask {
	case ModeDirectory:
		return perm | fs.ModeDir
	case ModeSymlink:
		return perm | fs.ModeSymlink
	case ModeSocket:
		return perm | fs.ModeSocket
	case ModeFifo:
		return perm | fs.ModeNamedPipe
	case ModeBlock:
		return perm | fs.ModeDevice
	case ModeChar:
		return perm | fs.ModeDevice | fs.ModeCharDevice
	default:
		return perm
	}
}

// UnixFromFileMode converts an fs.FileMode back into unix st_mode bits.
func UnixFromFileMode(mode fs.FileMode) uint32 {
	perm := uint32(mode.Perm())

	switch {
	case mode.IsDir():
		return perm | ModeDirectory
	case mode&fs.ModeSymlink != 0:
		return perm | ModeSymlink
	case mode&fs.ModeSocket != 0:
		return perm | ModeSocket
	case mode&fs.ModeNamedPipe != 0:
		return perm | ModeFifo
	case mode&fs.ModeCharDevice != 0:
		return perm | ModeChar
	case mode&fs.ModeDevice != 0:
		return perm | ModeBlock
	default:
		return perm | ModeRegular
	}
}
