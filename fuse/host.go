// Package fuse hosts a bridge provider as a FUSE filesystem and manages
// workspace roots as symlinks into the mountpoint.
package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/log"
	"github.com/mwantia/adbfs/notify"
)

const DefaultTimeout = time.Second

type Options struct {
	// Mountpoint is the directory the provider is mounted at.
	// It is created if it does not exist.
	Mountpoint string

	// WorkspaceDir receives one symlink per workspace root.
	WorkspaceDir string

	// AllowOther permits other users to access the mount.
	// Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Timeout is used as entry and attribute cache timeout.
	Timeout time.Duration

	Logger *log.Logger
}

// Host implements adbfs.Registrar on top of a FUSE mount.
type Host struct {
	options Options
	logger  *log.Logger

	mu     sync.Mutex
	server *gofuse.Server
	scheme string
	done   chan struct{}
}

var _ adbfs.Registrar = (*Host)(nil)

func NewHost(options Options) (*Host, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Logger == nil {
		options.Logger = log.NewNop()
	}

	return &Host{
		options: options,
		logger:  options.Logger,
	}, nil
}

// RegisterProvider mounts provider at the configured mountpoint.
// Only one provider can be registered at a time.
func (h *Host) RegisterProvider(ctx context.Context, scheme string, provider adbfs.Provider, opts adbfs.ProviderOptions) (adbfs.Disposable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return nil, fmt.Errorf("provider for scheme '%s' already mounted at %s", h.scheme, h.options.Mountpoint)
	}

	if err := os.MkdirAll(h.options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", h.options.Mountpoint, err)
	}

	root := &node{
		mount: &mountState{
			provider: provider,
			readOnly: opts.ReadOnly,
			timeout:  h.options.Timeout,
			logger:   h.logger,
		},
		path: "/",
	}

	timeout := h.options.Timeout
	negative := timeout / 10
	server, err := fs.Mount(h.options.Mountpoint, root, &fs.Options{
		EntryTimeout:    &timeout,
		AttrTimeout:     &timeout,
		NegativeTimeout: &negative,
		MountOptions: gofuse.MountOptions{
			FsName:     scheme,
			Name:       scheme,
			AllowOther: h.options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", h.options.Mountpoint, err)
	}

	events, unsubscribe := provider.Changes()
	done := make(chan struct{})
	go h.invalidate(root, events, done)

	h.server = server
	h.scheme = scheme
	h.done = done
	h.logger.Info("Mounted scheme '%s' at %s", scheme, h.options.Mountpoint)

	return adbfs.DisposeFunc(func() {
		unsubscribe()
		h.unmount(server)
	}), nil
}

// invalidate drops kernel cache entries of the root for every change event.
func (h *Host) invalidate(root *node, events <-chan notify.Event, done chan struct{}) {
	defer close(done)

	for event := range events {
		h.logger.Debug("Invalidating root for %s event (device: '%s')", event.Cause, event.DeviceID)

		if event.DeviceID != "" {
			root.NotifyEntry(event.DeviceID)
			continue
		}
		for name := range root.Children() {
			root.NotifyEntry(name)
		}
	}
}

func (h *Host) unmount(server *gofuse.Server) {
	h.mu.Lock()
	if h.server != server {
		h.mu.Unlock()
		return
	}
	done := h.done
	h.server = nil
	h.done = nil
	h.mu.Unlock()

	if err := server.Unmount(); err != nil {
		h.logger.Warn("Failed to unmount %s: %v", h.options.Mountpoint, err)
	}
	<-done

	h.logger.Info("Unmounted %s", h.options.Mountpoint)
}

// Wait blocks until the filesystem is unmounted.
func (h *Host) Wait() {
	h.mu.Lock()
	server := h.server
	h.mu.Unlock()

	if server != nil {
		server.Wait()
	}
}
