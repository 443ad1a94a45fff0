// Package adb talks to an adb server using the host wire protocol and the
// sync sub-protocol for file transfer.
package adb

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

const DefaultAddress = "127.0.0.1:5037"

const (
	statusOkay = "OKAY"
	statusFail = "FAIL"
)

var ErrProtocol = errors.New("adb: protocol error")

// ServerError carries the message of a FAIL response.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "adb: " + e.Message
}

// Unwrap maps well-known device messages onto io/fs errors.
func (e *ServerError) Unwrap() error {
	switch {
	case strings.Contains(e.Message, "No such file or directory"):
		return fs.ErrNotExist
	case strings.Contains(e.Message, "Permission denied"):
		return fs.ErrPermission
	case strings.Contains(e.Message, "File exists"):
		return fs.ErrExist
	default:
		return nil
	}
}

// writeRequest sends a host request prefixed by its hex encoded length.
func writeRequest(w io.Writer, payload string) error {
	if len(payload) > 0xffff {
		return fmt.Errorf("%w: request too long", ErrProtocol)
	}

	_, err := fmt.Fprintf(w, "%04x%s", len(payload), payload)
	return err
}

// readRequest reads a hex length prefixed host request.
func readRequest(r io.Reader) (string, error) {
	return readString(r)
}

// readStatus reads OKAY or FAIL followed by the failure message.
func readStatus(r io.Reader) error {
	status := make([]byte, 4)
	if _, err := io.ReadFull(r, status); err != nil {
		return err
	}

	switch string(status) {
	case statusOkay:
		return nil
	case statusFail:
		msg, err := readString(r)
		if err != nil {
			return err
		}
		return &ServerError{Message: msg}
	default:
		return fmt.Errorf("%w: unexpected status '%s'", ErrProtocol, status)
	}
}

func readString(r io.Reader) (string, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", err
	}

	length, err := strconv.ParseUint(string(header), 16, 16)
	if err != nil {
		return "", fmt.Errorf("%w: invalid length '%s'", ErrProtocol, header)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", err
	}

	return string(payload), nil
}

func writeOkay(w io.Writer) error {
	_, err := io.WriteString(w, statusOkay)
	return err
}

func writeFail(w io.Writer, msg string) error {
	if len(msg) > 0xffff {
		msg = msg[:0xffff]
	}

	_, err := fmt.Fprintf(w, "%s%04x%s", statusFail, len(msg), msg)
	return err
}

func writeString(w io.Writer, s string) error {
	_, err := fmt.Fprintf(w, "%04x%s", len(s), s)
	return err
}
