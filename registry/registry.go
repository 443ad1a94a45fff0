// Package registry enumerates attached devices and tracks their attach and
// detach events for the lifetime of a bridge.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/data/errors"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/log"
	"github.com/mwantia/adbfs/metrics"
	"github.com/tidwall/btree"
)

var errTrackingEnded = errors.New("tracking ended unexpectedly")

type Registry struct {
	mu sync.RWMutex

	transport device.Transport
	logger    *log.Logger
	interval  time.Duration
	listener  func(Event)

	state State
	err   error
	known *btree.Map[string, data.DeviceInfo]

	cancel context.CancelFunc
	done   chan struct{}
}

func New(transport device.Transport, opts ...Option) (*Registry, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return &Registry{
		transport: transport,
		logger:    options.Logger,
		interval:  options.PollInterval,
		listener:  options.Listener,
		state:     StateUninitialized,
		known:     btree.NewMap[string, data.DeviceInfo](0),
	}, nil
}

// ListAttached queries the transport for the current device set.
func (r *Registry) ListAttached(ctx context.Context) ([]data.DeviceInfo, error) {
	devices, err := r.transport.ListDevices(ctx)
	if err != nil {
		return nil, errors.Transport(err, "devices", r.transport.Name())
	}

	return devices, nil
}

// Start transitions into tracking. It may only be called once.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return errors.TrackerStarted(r.transport.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = StateTracking

	go r.run(ctx)

	return nil
}

// Stop releases the tracking subscription and awaits its termination.
// It is a no-op if tracking was never started. The registry is stopped even
// when ctx expires before the tracker has terminated.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	if r.state == StateUninitialized || r.state == StateTracking {
		r.state = StateStopped
	}
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state
}

// Err returns the tracker failure that moved the registry into StateErrored.
func (r *Registry) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.err
}

// Devices returns the device set last observed by tracking.
func (r *Registry) Devices() []data.DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.known.Values()
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.done)

	var err error
	if tracker, ok := device.CanTrack(r.transport); ok {
		r.logger.Debug("Tracking devices natively via '%s'", r.transport.Name())
		err = tracker.Track(ctx, r.apply)
	} else {
		r.logger.Debug("Polling devices via '%s' every %v", r.transport.Name(), r.interval)
		err = r.poll(ctx)
	}

	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = errTrackingEnded
	}

	r.fail(errors.Tracker(err, r.transport.Name()))
}

func (r *Registry) poll(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		devices, err := r.transport.ListDevices(ctx)
		if err != nil {
			return err
		}
		r.apply(devices)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Registry) fail(err error) {
	r.mu.Lock()
	if r.state != StateTracking {
		r.mu.Unlock()
		return
	}
	r.state = StateErrored
	r.err = err
	r.mu.Unlock()

	metrics.RecordTrackerError()
	r.logger.Error("Device tracking stopped: %v", err)
}

// apply diffs a full snapshot against the known set and emits the changes.
func (r *Registry) apply(devices []data.DeviceInfo) {
	current := btree.NewMap[string, data.DeviceInfo](0)
	for _, dev := range devices {
		current.Set(dev.ID, dev)
	}

	var events []Event

	r.mu.Lock()
	r.known.Scan(func(id string, dev data.DeviceInfo) bool {
		if _, ok := current.Get(id); !ok {
			events = append(events, Event{Type: EventDetach, Device: dev})
		}
		return true
	})
	current.Scan(func(id string, dev data.DeviceInfo) bool {
		if _, ok := r.known.Get(id); !ok {
			events = append(events, Event{Type: EventAttach, Device: dev})
		}
		return true
	})
	r.known = current
	r.mu.Unlock()

	metrics.SetDevicesAttached(current.Len())

	for _, event := range events {
		r.logger.Info("Device %s %sed", event.Device.ID, event.Type)
		metrics.RecordDeviceEvent(string(event.Type))
		r.listener(event)
	}
}
