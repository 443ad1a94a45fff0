// Package adbfs exposes attached devices as a single virtual filesystem.
// The root lists one directory per device and every path below a device maps
// onto the device's own filesystem.
package adbfs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/log"
	"github.com/mwantia/adbfs/notify"
	"github.com/mwantia/adbfs/registry"
)

type FileSystem struct {
	options *Options
	logger  *log.Logger

	transport device.Transport
	resolver  *Resolver
	registry  *registry.Registry
	notifier  *notify.Notifier

	restricted atomic.Bool
	closed     atomic.Bool
	inflight   inflight
}

var _ Provider = (*FileSystem)(nil)

// New opens transport and starts tracking its devices. The returned
// FileSystem owns the transport and must be closed with Close.
func New(ctx context.Context, transport device.Transport, opts ...Option) (*FileSystem, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	fs := &FileSystem{
		options:   options,
		logger:    options.Logger,
		transport: transport,
		resolver:  NewResolver(options.RootMapping, options.Subtree, options.ReservedNames),
		notifier:  notify.New(),
		inflight: inflight{
			ops: make(map[uuid.UUID]*operation),
		},
	}
	fs.restricted.Store(options.RestrictedMode)

	reg, err := registry.New(transport,
		registry.WithLogger(fs.logger.Named("registry")),
		registry.WithPollInterval(options.PollInterval),
		registry.WithListener(fs.onDeviceEvent))
	if err != nil {
		return nil, err
	}
	fs.registry = reg

	if err := transport.Open(ctx); err != nil {
		return nil, err
	}

	if err := fs.registry.Start(); err != nil {
		if cerr := transport.Close(ctx); cerr != nil {
			fs.logger.Warn("Failed to close transport '%s': %v", transport.Name(), cerr)
		}
		return nil, err
	}

	fs.logger.Info("Bridge started on transport '%s' (mapping: %s, restricted: %t)",
		transport.Name(), options.RootMapping, options.RestrictedMode)

	return fs, nil
}

// Close stops device tracking, awaits its termination and closes the transport.
// Teardown errors are logged and never returned. Calling Close more than once is a no-op.
func (fs *FileSystem) Close(ctx context.Context) {
	if !fs.closed.CompareAndSwap(false, true) {
		return
	}

	var errs data.Errors
	if err := fs.registry.Stop(ctx); err != nil {
		errs.Add(fmt.Errorf("stop device tracking: %w", err))
	}

	fs.notifier.Close()

	if err := fs.transport.Close(ctx); err != nil {
		errs.Add(fmt.Errorf("close transport '%s': %w", fs.transport.Name(), err))
	}

	if err := errs.Errors(); err != nil {
		fs.logger.Warn("Bridge closed with errors: %v", err)
		return
	}

	fs.logger.Info("Bridge closed")
}

func (fs *FileSystem) onDeviceEvent(event registry.Event) {
	cause := notify.CauseAttach
	if event.Type == registry.EventDetach {
		cause = notify.CauseDetach
	}

	fs.notifier.PublishRootChanged(cause, event.Device.ID)
}

// Changes subscribes to change events. Every event is scoped to the virtual root.
func (fs *FileSystem) Changes() (<-chan notify.Event, func()) {
	return fs.notifier.Subscribe()
}

// Refresh publishes a root change on explicit request.
func (fs *FileSystem) Refresh() {
	fs.notifier.PublishRootChanged(notify.CauseRefresh, "")
}

// SetRestrictedMode switches the device root listing between the full
// listing and the subtree directory only, and publishes a root change.
func (fs *FileSystem) SetRestrictedMode(enabled bool) {
	if fs.restricted.Swap(enabled) != enabled {
		fs.logger.Info("Restricted mode changed to %t", enabled)
	}

	fs.Refresh()
}

func (fs *FileSystem) RestrictedMode() bool {
	return fs.restricted.Load()
}

// TrackerState reports the state of device tracking together with the
// failure that ended it, if any.
func (fs *FileSystem) TrackerState() (registry.State, error) {
	return fs.registry.State(), fs.registry.Err()
}

// Devices returns the device set last observed by tracking.
func (fs *FileSystem) Devices() []data.DeviceInfo {
	return fs.registry.Devices()
}

func (fs *FileSystem) Resolver() *Resolver {
	return fs.resolver
}
