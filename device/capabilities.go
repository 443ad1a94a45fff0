package device

import "slices"

type Capability string

const (
	// CapabilityTrack marks transports implementing Tracker natively.
	CapabilityTrack Capability = "track"
	// CapabilityShell marks transports that execute real device shells.
	CapabilityShell Capability = "shell"
	// CapabilityEmulated marks transports whose devices and shells are emulated in-process.
	CapabilityEmulated Capability = "emulated"
	// CapabilityPersistent marks transports whose device state survives a restart.
	CapabilityPersistent Capability = "persistent"
)

// Capabilities describes what a transport supports.
type Capabilities struct {
	Capabilities []Capability `json:"capabilities"`
}

func NewCapabilities(caps ...Capability) *Capabilities {
	return &Capabilities{
		Capabilities: caps,
	}
}

// Contains checks if a capability is supported.
func (c *Capabilities) Contains(cap Capability) bool {
	if c == nil {
		return false
	}

	return slices.Contains(c.Capabilities, cap)
}

// CanTrack returns true if the transport advertises and implements native tracking.
func CanTrack(t Transport) (Tracker, bool) {
	tracker, ok := t.(Tracker)
	if !ok || !t.Capabilities().Contains(CapabilityTrack) {
		return nil, false
	}

	return tracker, true
}
