package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mwantia/adbfs/data"
)

// Error is a classified bridge failure. It unwraps to both its sentinel
// kind and the original cause, so errors.Is works against either.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error

	// Diagnostic holds remote output text that explains the failure,
	// e.g. the output of a failed shell command.
	Diagnostic string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())

	if e.Op != "" {
		fmt.Fprintf(&sb, ": %s", e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " '%s'", e.Path)
	}
	if e.Diagnostic != "" {
		fmt.Fprintf(&sb, ": %s", e.Diagnostic)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}

	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Kind returns the sentinel kind of a classified error, or nil.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return nil
}

// Classified reports whether err already carries one of the bridge sentinels.
func Classified(err error) bool {
	for _, kind := range []error{
		data.ErrInvalidPath,
		data.ErrReservedName,
		data.ErrNotExist,
		data.ErrExist,
		data.ErrCrossDevice,
		data.ErrDirectoryNotEmpty,
		data.ErrIsDirectory,
		data.ErrReadOnly,
		data.ErrTransport,
		data.ErrUnsupported,
		data.ErrTracker,
		data.ErrTrackerStarted,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}

func newError(kind, err error, op, path string) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}
