package errors

import (
	"strings"

	"github.com/mwantia/adbfs/data"
)

// Transport wraps any remote-call failure that is not otherwise classified.
// The original error text is kept as part of the message.
func Transport(err error, op, path string) error {
	return newError(data.ErrTransport, err, op, path)
}

// TransportOutput reports a remote command that printed unexpected output.
func TransportOutput(output, op, path string) error {
	return &Error{
		Kind:       data.ErrTransport,
		Op:         op,
		Path:       path,
		Diagnostic: strings.TrimSpace(output),
	}
}

func NotEmpty(output, op, path string) error {
	return &Error{
		Kind:       data.ErrDirectoryNotEmpty,
		Op:         op,
		Path:       path,
		Diagnostic: strings.TrimSpace(output),
	}
}

func Unsupported(name, capability string) error {
	return newError(data.ErrUnsupported, nil, capability, name)
}

func Tracker(err error, name string) error {
	return newError(data.ErrTracker, err, "track", name)
}

func TrackerStarted(name string) error {
	return newError(data.ErrTrackerStarted, nil, "track", name)
}
