package adbfs

import (
	"context"
	"sync"

	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/notify"
)

const (
	// CommandWorkspaceInit adds the virtual root as a workspace root.
	CommandWorkspaceInit = "adbfs.workspaceInit"

	WorkspaceName = "Android Device Files"
)

// Extension binds a FileSystem to a host Registrar.
type Extension struct {
	fs        *FileSystem
	registrar Registrar
	commands  *Commands

	mu            sync.Mutex
	registrations []Disposable
}

// Activate constructs the bridge, starts tracking exactly once and registers
// the provider under the adbfs scheme together with the workspace command.
func Activate(ctx context.Context, transport device.Transport, registrar Registrar, opts ...Option) (*Extension, error) {
	fs, err := New(ctx, transport, opts...)
	if err != nil {
		return nil, err
	}

	ext := &Extension{
		fs:        fs,
		registrar: registrar,
		commands:  NewCommands(),
	}

	registration, err := registrar.RegisterProvider(ctx, Scheme, fs, ProviderOptions{
		CaseSensitive: true,
	})
	if err != nil {
		fs.Close(ctx)
		return nil, err
	}
	ext.registrations = append(ext.registrations, registration)

	if err := ext.commands.Register(&CommandFunc{
		ID:   CommandWorkspaceInit,
		Help: "Add the device root as a workspace root",
		Run:  ext.workspaceInit,
	}); err != nil {
		ext.Dispose(ctx)
		return nil, err
	}

	fs.logger.Info("Registered provider for scheme '%s'", Scheme)

	return ext, nil
}

func (ext *Extension) workspaceInit(ctx context.Context, _ []string) error {
	return ext.registrar.AddWorkspaceRoot(ctx, notify.RootURI, WorkspaceName)
}

func (ext *Extension) FileSystem() *FileSystem {
	return ext.fs
}

func (ext *Extension) Commands() *Commands {
	return ext.commands
}

// ConfigurationChanged reacts to a changed restricted-subtree option.
func (ext *Extension) ConfigurationChanged(restricted bool) {
	ext.fs.SetRestrictedMode(restricted)
}

// Dispose releases every registration and closes the bridge.
func (ext *Extension) Dispose(ctx context.Context) {
	ext.mu.Lock()
	registrations := ext.registrations
	ext.registrations = nil
	ext.mu.Unlock()

	for i := len(registrations) - 1; i >= 0; i-- {
		registrations[i].Dispose()
	}

	ext.fs.Close(ctx)
}
