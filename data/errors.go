package data

import (
	"errors"
	"sync"
)

// Standard errors returned by the bridge. Callers branch on them with errors.Is.
var (
	// Path resolution errors
	ErrInvalidPath  = errors.New("adbfs: invalid path detected")
	ErrReservedName = errors.New("adbfs: reserved device name")

	// File operation errors
	ErrNotExist          = errors.New("adbfs: file does not exist")
	ErrExist             = errors.New("adbfs: file already exists")
	ErrCrossDevice       = errors.New("adbfs: cross-device operation unsupported")
	ErrDirectoryNotEmpty = errors.New("adbfs: directory not empty")
	ErrIsDirectory       = errors.New("adbfs: is a directory")
	ErrReadOnly          = errors.New("adbfs: read-only location")

	// Remote errors
	ErrTransport   = errors.New("adbfs: transport failure")
	ErrUnsupported = errors.New("adbfs: transport capability unsupported")

	// Device tracking errors
	ErrTracker        = errors.New("adbfs: device tracker failure")
	ErrTrackerStarted = errors.New("adbfs: device tracking already started")
)

// Errors collects errors from teardown paths that must not stop on the first failure.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
