package device

import (
	"context"
	"io"
	"io/fs"
)

// Client defines the per-device operations consumed by the bridge.
// Paths are absolute paths within the device's own filesystem.
type Client interface {
	// Stat returns the metadata of a single remote path.
	// A missing path returns an error matching fs.ErrNotExist.
	Stat(ctx context.Context, path string) (fs.FileInfo, error)

	// List returns the direct children of a remote directory, excluding "." and "..".
	List(ctx context.Context, path string) ([]fs.FileInfo, error)

	// Pull opens a read stream over the full content of a remote file.
	Pull(ctx context.Context, path string) (io.ReadCloser, error)

	// Push writes the content of r to a remote file, creating or replacing it.
	Push(ctx context.Context, r io.Reader, path string, mode fs.FileMode) error

	// Shell executes a command on the device and returns its combined output stream.
	Shell(ctx context.Context, command string) (io.ReadCloser, error)
}
