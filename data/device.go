package data

// DeviceInfo describes one currently attached device.
// It only exists while the underlying device is attached.
type DeviceInfo struct {
	// ID is the stable identifier (serial) of the device.
	ID string `json:"id"`

	// State is the transport-reported connection state, e.g. "device",
	// "offline" or "unauthorized". Empty when the transport has no notion of state.
	State string `json:"state,omitempty"`
}
