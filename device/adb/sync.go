package adb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"time"

	"github.com/mwantia/adbfs/device"
)

// Sync request and response identifiers.
const (
	syncStat = "STAT"
	syncList = "LIST"
	syncRecv = "RECV"
	syncSend = "SEND"
	syncDent = "DENT"
	syncData = "DATA"
	syncDone = "DONE"
	syncOkay = "OKAY"
	syncFail = "FAIL"
	syncQuit = "QUIT"
)

const (
	// MaxChunkSize is the largest DATA payload the protocol allows.
	MaxChunkSize = 64 * 1024
	maxPathSize  = 1024
)

// syncConn speaks the sync sub-protocol over an established connection.
type syncConn struct {
	rw io.ReadWriter
}

func (s *syncConn) writeHeader(id string, length uint32) error {
	header := make([]byte, 8)
	copy(header, id)
	binary.LittleEndian.PutUint32(header[4:], length)

	_, err := s.rw.Write(header)
	return err
}

func (s *syncConn) writeRequest(id, payload string) error {
	if len(payload) > maxPathSize {
		return fmt.Errorf("%w: path too long", ErrProtocol)
	}
	if err := s.writeHeader(id, uint32(len(payload))); err != nil {
		return err
	}

	_, err := io.WriteString(s.rw, payload)
	return err
}

func (s *syncConn) readHeader() (string, uint32, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(s.rw, header); err != nil {
		return "", 0, err
	}

	return string(header[:4]), binary.LittleEndian.Uint32(header[4:]), nil
}

func (s *syncConn) readFail(length uint32) error {
	msg := make([]byte, length)
	if _, err := io.ReadFull(s.rw, msg); err != nil {
		return err
	}

	return &ServerError{Message: string(msg)}
}

func (s *syncConn) readUint32s(n int) ([]uint32, error) {
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(s.rw, buf); err != nil {
		return nil, err
	}

	values := make([]uint32, n)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}

	return values, nil
}

// stat returns fs.ErrNotExist when the device reports an all-zero stat.
func (s *syncConn) stat(p string) (fs.FileInfo, error) {
	if err := s.writeRequest(syncStat, p); err != nil {
		return nil, err
	}

	id, mode, err := s.readHeader()
	if err != nil {
		return nil, err
	}
	if id != syncStat {
		return nil, fmt.Errorf("%w: unexpected '%s' for STAT", ErrProtocol, id)
	}

	values, err := s.readUint32s(2)
	if err != nil {
		return nil, err
	}

	size, mtime := values[0], values[1]
	if mode == 0 && size == 0 && mtime == 0 {
		return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}

	return device.NewFileInfo(path.Base(p), mode, int64(size), int64(mtime)), nil
}

func (s *syncConn) list(p string) ([]fs.FileInfo, error) {
	if err := s.writeRequest(syncList, p); err != nil {
		return nil, err
	}

	result := make([]fs.FileInfo, 0)
	for {
		id, length, err := s.readHeader()
		if err != nil {
			return nil, err
		}

		switch id {
		case syncDent:
			values, err := s.readUint32s(3)
			if err != nil {
				return nil, err
			}

			name := make([]byte, values[2])
			if _, err := io.ReadFull(s.rw, name); err != nil {
				return nil, err
			}
			if n := string(name); n == "." || n == ".." {
				continue
			}

			result = append(result, device.NewFileInfo(string(name), length, int64(values[0]), int64(values[1])))

		case syncDone:
			// DONE carries a zeroed dent record
			if _, err := s.readUint32s(3); err != nil {
				return nil, err
			}
			return result, nil

		case syncFail:
			return nil, s.readFail(length)

		default:
			return nil, fmt.Errorf("%w: unexpected '%s' for LIST", ErrProtocol, id)
		}
	}
}

// recv starts a transfer; the returned reader yields the file content.
func (s *syncConn) recv(p string) (io.Reader, error) {
	if err := s.writeRequest(syncRecv, p); err != nil {
		return nil, err
	}

	return &recvReader{conn: s}, nil
}

func (s *syncConn) send(r io.Reader, p string, mode fs.FileMode, mtime time.Time) (int, error) {
	target := p + "," + strconv.FormatUint(uint64(device.UnixFromFileMode(mode)), 10)
	if err := s.writeRequest(syncSend, target); err != nil {
		return 0, err
	}

	total := 0
	chunk := make([]byte, MaxChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if werr := s.writeHeader(syncData, uint32(n)); werr != nil {
				return total, werr
			}
			if _, werr := s.rw.Write(chunk[:n]); werr != nil {
				return total, werr
			}
			total += n
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
	}

	if err := s.writeHeader(syncDone, uint32(mtime.Unix())); err != nil {
		return total, err
	}

	id, length, err := s.readHeader()
	if err != nil {
		return total, err
	}

	switch id {
	case syncOkay:
		return total, nil
	case syncFail:
		return total, s.readFail(length)
	default:
		return total, fmt.Errorf("%w: unexpected '%s' for SEND", ErrProtocol, id)
	}
}

func (s *syncConn) quit() error {
	return s.writeHeader(syncQuit, 0)
}

// recvReader decodes DATA chunks until DONE or FAIL.
type recvReader struct {
	conn      *syncConn
	remaining uint32
	err       error
}

func (r *recvReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for r.remaining == 0 {
		id, length, err := r.conn.readHeader()
		if err != nil {
			r.err = err
			return 0, err
		}

		switch id {
		case syncData:
			r.remaining = length
		case syncDone:
			r.err = io.EOF
			return 0, io.EOF
		case syncFail:
			r.err = r.conn.readFail(length)
			return 0, r.err
		default:
			r.err = fmt.Errorf("%w: unexpected '%s' for RECV", ErrProtocol, id)
			return 0, r.err
		}
	}

	if uint32(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	n, err := r.conn.rw.Read(p)
	r.remaining -= uint32(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
	}

	return n, err
}
