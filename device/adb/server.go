package adb

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/log"
)

// Server exposes the devices of any transport through the adb host protocol,
// so emulated devices can be browsed with stock adb tooling.
type Server struct {
	transport device.Transport
	logger    *log.Logger

	// PollInterval drives host:track-devices for transports without native tracking
	PollInterval time.Duration

	wg sync.WaitGroup
}

func NewServer(transport device.Transport, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Server{
		transport:    transport,
		logger:       logger,
		PollInterval: time.Second,
	}
}

// Serve accepts connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		l.Close()
	})
	defer stop()

	defer s.wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()

			connStop := context.AfterFunc(ctx, func() {
				conn.Close()
			})
			defer connStop()

			if err := s.handle(ctx, conn); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debug("Connection from '%s' ended: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) error {
	r := bufio.NewReader(conn)

	request, err := readRequest(r)
	if err != nil {
		return err
	}

	switch {
	case request == "host:version":
		if err := writeOkay(conn); err != nil {
			return err
		}
		return writeString(conn, "0029")

	case request == "host:devices" || request == "host:devices-l":
		devices, err := s.transport.ListDevices(ctx)
		if err != nil {
			return writeFail(conn, err.Error())
		}
		if err := writeOkay(conn); err != nil {
			return err
		}
		return writeString(conn, formatDevices(devices))

	case request == "host:track-devices":
		if err := writeOkay(conn); err != nil {
			return err
		}
		return s.track(ctx, conn)

	case request == "host:transport-any":
		devices, err := s.transport.ListDevices(ctx)
		if err != nil {
			return writeFail(conn, err.Error())
		}
		if len(devices) != 1 {
			return writeFail(conn, "more than one device/emulator")
		}
		return s.serveDevice(ctx, conn, r, devices[0].ID)

	case strings.HasPrefix(request, "host:transport:"):
		serial := strings.TrimPrefix(request, "host:transport:")

		devices, err := s.transport.ListDevices(ctx)
		if err != nil {
			return writeFail(conn, err.Error())
		}
		if !slices.ContainsFunc(devices, func(dev data.DeviceInfo) bool { return dev.ID == serial }) {
			return writeFail(conn, fmt.Sprintf("device '%s' not found", serial))
		}
		return s.serveDevice(ctx, conn, r, serial)

	default:
		return writeFail(conn, "unknown host service")
	}
}

func (s *Server) track(ctx context.Context, conn net.Conn) error {
	var last string
	send := func(devices []data.DeviceInfo) error {
		list := formatDevices(devices)
		if list == last {
			return nil
		}

		last = list
		return writeString(conn, list)
	}

	if tracker, ok := device.CanTrack(s.transport); ok {
		var werr error
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		err := tracker.Track(ctx, func(devices []data.DeviceInfo) {
			if werr = send(devices); werr != nil {
				cancel()
			}
		})
		if werr != nil {
			return werr
		}
		return err
	}

	last = "\x00"
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		devices, err := s.transport.ListDevices(ctx)
		if err != nil {
			return err
		}
		if err := send(devices); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Server) serveDevice(ctx context.Context, conn net.Conn, r *bufio.Reader, serial string) error {
	if err := writeOkay(conn); err != nil {
		return err
	}

	service, err := readRequest(r)
	if err != nil {
		return err
	}

	client := s.transport.Device(serial)

	switch {
	case service == "sync:":
		if err := writeOkay(conn); err != nil {
			return err
		}
		return s.serveSync(ctx, &syncConn{rw: struct {
			io.Reader
			io.Writer
		}{r, conn}}, client)

	case strings.HasPrefix(service, "shell:"):
		output, err := client.Shell(ctx, strings.TrimPrefix(service, "shell:"))
		if err != nil {
			return writeFail(conn, err.Error())
		}
		defer output.Close()

		if err := writeOkay(conn); err != nil {
			return err
		}

		_, err = io.Copy(conn, output)
		return err

	default:
		return writeFail(conn, "unknown device service")
	}
}

func (s *Server) serveSync(ctx context.Context, sc *syncConn, client device.Client) error {
	for {
		id, length, err := sc.readHeader()
		if err != nil {
			return err
		}

		if id == syncQuit {
			return nil
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(sc.rw, payload); err != nil {
			return err
		}

		switch id {
		case syncStat:
			err = s.syncStat(ctx, sc, client, string(payload))
		case syncList:
			err = s.syncList(ctx, sc, client, string(payload))
		case syncRecv:
			err = s.syncRecv(ctx, sc, client, string(payload))
		case syncSend:
			err = s.syncSend(ctx, sc, client, string(payload))
		default:
			return writeSyncFail(sc, fmt.Sprintf("unknown sync request '%s'", id))
		}

		if err != nil {
			return err
		}
	}
}

func (s *Server) syncStat(ctx context.Context, sc *syncConn, client device.Client, p string) error {
	var mode, size, mtime uint32

	if info, err := client.Stat(ctx, p); err == nil {
		mode = device.UnixFromFileMode(info.Mode())
		size = uint32(info.Size())
		mtime = uint32(info.ModTime().Unix())
	}

	return writeStatRecord(sc, syncStat, mode, size, mtime, "")
}

func (s *Server) syncList(ctx context.Context, sc *syncConn, client device.Client, p string) error {
	infos, err := client.List(ctx, p)
	if err == nil {
		for _, info := range infos {
			mode := device.UnixFromFileMode(info.Mode())
			if err := writeStatRecord(sc, syncDent, mode, uint32(info.Size()), uint32(info.ModTime().Unix()), info.Name()); err != nil {
				return err
			}
		}
	}

	// Listing failures end in an empty DONE, like adbd does
	return writeStatRecord(sc, syncDone, 0, 0, 0, "")
}

func (s *Server) syncRecv(ctx context.Context, sc *syncConn, client device.Client, p string) error {
	r, err := client.Pull(ctx, p)
	if err != nil {
		return writeSyncFail(sc, failMessage(err))
	}
	defer r.Close()

	chunk := make([]byte, MaxChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if werr := sc.writeHeader(syncData, uint32(n)); werr != nil {
				return werr
			}
			if _, werr := sc.rw.Write(chunk[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return sc.writeHeader(syncDone, 0)
		}
		if err != nil {
			return writeSyncFail(sc, failMessage(err))
		}
	}
}

func (s *Server) syncSend(ctx context.Context, sc *syncConn, client device.Client, target string) error {
	p := target
	mode := fs.FileMode(0o644)

	if i := strings.LastIndexByte(target, ','); i >= 0 {
		p = target[:i]
		if raw, err := strconv.ParseUint(target[i+1:], 10, 32); err == nil {
			mode = device.FileModeFromUnix(uint32(raw))
		}
	}

	var buf bytes.Buffer
	for {
		id, length, err := sc.readHeader()
		if err != nil {
			return err
		}

		if id == syncDone {
			break
		}
		if id != syncData {
			return writeSyncFail(sc, fmt.Sprintf("unexpected '%s' during SEND", id))
		}
		if length > MaxChunkSize {
			return writeSyncFail(sc, "data chunk too large")
		}
		if _, err := io.CopyN(&buf, sc.rw, int64(length)); err != nil {
			return err
		}
	}

	if err := client.Push(ctx, &buf, p, mode); err != nil {
		return writeSyncFail(sc, failMessage(err))
	}

	return sc.writeHeader(syncOkay, 0)
}

func writeStatRecord(sc *syncConn, id string, mode, size, mtime uint32, name string) error {
	if err := sc.writeHeader(id, mode); err != nil {
		return err
	}

	record := make([]byte, 0, 12+len(name))
	record = appendUint32(record, size)
	record = appendUint32(record, mtime)
	if id == syncDent || id == syncDone {
		record = appendUint32(record, uint32(len(name)))
		record = append(record, name...)
	}

	_, err := sc.rw.Write(record)
	return err
}

func writeSyncFail(sc *syncConn, msg string) error {
	if err := sc.writeHeader(syncFail, uint32(len(msg))); err != nil {
		return err
	}

	_, err := io.WriteString(sc.rw, msg)
	return err
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func failMessage(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return "No such file or directory"
	}

	return err.Error()
}
