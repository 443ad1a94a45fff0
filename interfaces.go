package adbfs

import (
	"context"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/notify"
)

// Provider is the filesystem capability handed to a Registrar.
// Paths are virtual paths "/<device>/<remote...>", optionally carrying the "adbfs:" scheme.
type Provider interface {
	// Stat returns the entry for a single path. The root is always the
	// synthetic "(devices)" directory.
	Stat(ctx context.Context, path string) (data.Entry, error)

	// ListDirectory returns the entries of a directory; the root lists attached devices.
	ListDirectory(ctx context.Context, path string) ([]data.Entry, error)

	// ReadFile returns the full content of a file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the content of a file, creating it if needed.
	WriteFile(ctx context.Context, path string, content []byte, opts WriteOptions) error

	// Rename moves a file or directory within one device.
	Rename(ctx context.Context, oldPath, newPath string, opts RenameOptions) error

	// Delete removes a file or an empty directory.
	Delete(ctx context.Context, path string) error

	// CreateDirectory creates a single directory.
	CreateDirectory(ctx context.Context, path string) error

	// Watch registers interest in a path. No remote watch exists, so the
	// returned handle is a no-op; changes are only delivered through Changes.
	Watch(path string, opts WatchOptions) Disposable

	// Changes subscribes to change events scoped to the virtual root.
	Changes() (<-chan notify.Event, func())
}

// Registrar is the host that mounts providers and manages workspace roots.
type Registrar interface {
	// RegisterProvider makes provider reachable under scheme.
	RegisterProvider(ctx context.Context, scheme string, provider Provider, opts ProviderOptions) (Disposable, error)

	// AddWorkspaceRoot asks the host to add uri as a workspace root named name.
	AddWorkspaceRoot(ctx context.Context, uri, name string) error
}

// Disposable releases a registration.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a function into a Disposable.
type DisposeFunc func()

func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

type ProviderOptions struct {
	CaseSensitive bool
	ReadOnly      bool
}

// WriteOptions are accepted for compatibility with host write calls.
// They are not enforced: every write creates or overwrites unconditionally.
type WriteOptions struct {
	Create    bool
	Overwrite bool
}

// RenameOptions are accepted for compatibility; an existing destination
// always fails with ErrExist.
type RenameOptions struct {
	Overwrite bool
}

type WatchOptions struct {
	Recursive bool
	Excludes  []string
}
