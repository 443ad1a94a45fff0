package registry

import "github.com/mwantia/adbfs/data"

type State int

const (
	StateUninitialized State = iota
	StateTracking
	StateStopped
	// StateErrored is terminal; tracking is never restarted automatically.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateTracking:
		return "tracking"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

type EventType string

const (
	EventAttach EventType = "attach"
	EventDetach EventType = "detach"
)

// Event describes a single attach or detach of a device.
type Event struct {
	Type   EventType       `json:"type"`
	Device data.DeviceInfo `json:"device"`
}
