package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/tidwall/btree"
)

var ErrDeviceNotFound = errors.New("memory: device not found")

// Transport keeps a set of emulated devices in memory.
// Devices are attached and detached explicitly, which makes it the
// reference transport for tests and demos.
type Transport struct {
	mu sync.RWMutex

	devices  *btree.Map[string, *Device]
	trackers map[*tracker]struct{}
}

type tracker struct {
	changed chan struct{}
	failed  chan error
}

var (
	_ device.Transport = (*Transport)(nil)
	_ device.Tracker   = (*Transport)(nil)
)

func NewTransport() *Transport {
	return &Transport{
		devices:  btree.NewMap[string, *Device](0),
		trackers: make(map[*tracker]struct{}),
	}
}

// Name returns the identifier name defined for this transport
func (*Transport) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this transport.
func (t *Transport) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this transport.
func (t *Transport) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns a list of capabilities supported by this transport.
func (t *Transport) Capabilities() *device.Capabilities {
	return device.NewCapabilities(
		device.CapabilityTrack,
		device.CapabilityEmulated,
	)
}

// Attach adds a new empty device or returns the already attached one.
func (t *Transport) Attach(id string) *Device {
	t.mu.Lock()
	dev, exists := t.devices.Get(id)
	if !exists {
		dev = NewDevice(id)
		t.devices.Set(id, dev)
	}
	t.mu.Unlock()

	if !exists {
		t.notify()
	}

	return dev
}

// Detach removes a device; its content is lost.
func (t *Transport) Detach(id string) {
	t.mu.Lock()
	_, removed := t.devices.Delete(id)
	t.mu.Unlock()

	if removed {
		t.notify()
	}
}

// Lookup returns the attached device with the given id.
func (t *Transport) Lookup(id string) (*Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.devices.Get(id)
}

// BreakTracking terminates every active Track call with err.
func (t *Transport) BreakTracking(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tr := range t.trackers {
		select {
		case tr.failed <- err:
		default:
		}
	}
}

func (t *Transport) ListDevices(ctx context.Context) ([]data.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.snapshot(), nil
}

func (t *Transport) Device(id string) device.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if dev, ok := t.devices.Get(id); ok {
		return dev
	}

	return &detached{id: id}
}

func (t *Transport) Track(ctx context.Context, fn func([]data.DeviceInfo)) error {
	tr := &tracker{
		changed: make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}

	t.mu.Lock()
	t.trackers[tr] = struct{}{}
	initial := t.snapshot()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.trackers, tr)
		t.mu.Unlock()
	}()

	fn(initial)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-tr.failed:
			return err
		case <-tr.changed:
			t.mu.RLock()
			devices := t.snapshot()
			t.mu.RUnlock()

			fn(devices)
		}
	}
}

func (t *Transport) notify() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for tr := range t.trackers {
		select {
		case tr.changed <- struct{}{}:
		default:
			// A pending notification already covers this change
		}
	}
}

// snapshot must be called with t.mu held.
func (t *Transport) snapshot() []data.DeviceInfo {
	devices := make([]data.DeviceInfo, 0, t.devices.Len())
	t.devices.Scan(func(id string, _ *Device) bool {
		devices = append(devices, data.DeviceInfo{
			ID:    id,
			State: "device",
		})
		return true
	})

	return devices
}

func notFound(id string) error {
	return fmt.Errorf("%w: '%s'", ErrDeviceNotFound, id)
}
