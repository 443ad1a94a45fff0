package adbfs

import (
	"io/fs"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/data/errors"
)

// Errors returned by FileSystem operations. Callers branch on them with errors.Is.
var (
	ErrReservedName      = data.ErrReservedName
	ErrNotExist          = data.ErrNotExist
	ErrExist             = data.ErrExist
	ErrCrossDevice       = data.ErrCrossDevice
	ErrDirectoryNotEmpty = data.ErrDirectoryNotEmpty
	ErrTransport         = data.ErrTransport
	ErrTracker           = data.ErrTracker

	ErrIsDirectory    = data.ErrIsDirectory
	ErrReadOnly       = data.ErrReadOnly
	ErrInvalidPath    = data.ErrInvalidPath
	ErrTrackerStarted = data.ErrTrackerStarted
	ErrUnsupported    = data.ErrUnsupported
)

// normalize classifies a remote failure. A missing remote entry becomes
// ErrNotExist, errors that already carry a kind are kept and everything
// else is surfaced as ErrTransport with the remote error attached.
func normalize(err error, op, path string) error {
	switch {
	case err == nil:
		return nil
	case errors.Classified(err):
		return err
	case errors.Is(err, fs.ErrNotExist):
		return errors.NotFound(err, op, path)
	default:
		return errors.Transport(err, op, path)
	}
}

// transport classifies a remote failure without the not-found refinement.
func transport(err error, op, path string) error {
	if err == nil || errors.Classified(err) {
		return err
	}

	return errors.Transport(err, op, path)
}
