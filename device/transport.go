package device

import (
	"context"

	"github.com/mwantia/adbfs/data"
)

// Transport is used as lifecycle entrypoint for every remote device implementation.
type Transport interface {
	// Name returns the identifier name defined for this transport.
	Name() string
	// Open is part of the lifecycle behaviour and gets called before any device is addressed.
	Open(ctx context.Context) error
	// Close is part of the lifecycle behaviour and gets called when the bridge is disposed.
	Close(ctx context.Context) error

	// Capabilities returns the list of capabilities supported by this transport.
	Capabilities() *Capabilities

	// ListDevices enumerates all currently attached devices.
	ListDevices(ctx context.Context) ([]data.DeviceInfo, error)

	// Device returns the client addressing a single device by its identifier.
	// No remote call is made until an operation is invoked on the client.
	Device(id string) Client
}

// Tracker is implemented by transports that can push attach/detach changes
// instead of being polled.
type Tracker interface {
	// Track blocks and calls fn with the full set of attached devices every time
	// that set changes, starting with the current snapshot.
	// It returns nil once ctx is done and an error if the subscription fails or ends.
	Track(ctx context.Context, fn func([]data.DeviceInfo)) error
}
