package adb

import (
	"context"
	"io"
	"io/fs"
	"net"
	"time"

	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/shell"
)

// Device addresses a single device through the adb server.
// Every operation uses its own connection.
type Device struct {
	transport *Transport
	serial    string
}

var _ device.Client = (*Device)(nil)

func (d *Device) Serial() string {
	return d.serial
}

func (d *Device) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	var info fs.FileInfo
	err := d.sync(ctx, func(s *syncConn) (err error) {
		info, err = s.stat(p)
		return err
	})

	return info, err
}

func (d *Device) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	var infos []fs.FileInfo
	err := d.sync(ctx, func(s *syncConn) error {
		// LIST on a missing directory reports an empty listing
		info, err := s.stat(p)
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			return &fs.PathError{Op: "list", Path: p, Err: shell.ErrNotDirectory}
		}

		infos, err = s.list(p)
		return err
	})

	return infos, err
}

func (d *Device) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	conn, err := d.openSync(ctx)
	if err != nil {
		return nil, err
	}

	s := &syncConn{rw: conn}
	r, err := s.recv(p)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &stream{
		Reader: r,
		conn:   conn,
		stop:   context.AfterFunc(ctx, func() { conn.Close() }),
	}, nil
}

func (d *Device) Push(ctx context.Context, r io.Reader, p string, mode fs.FileMode) error {
	return d.sync(ctx, func(s *syncConn) error {
		_, err := s.send(r, p, mode, time.Now())
		return err
	})
}

// Shell runs command through the shell service; the output is the raw
// combined stdout and stderr stream until the device closes it.
func (d *Device) Shell(ctx context.Context, command string) (io.ReadCloser, error) {
	conn, err := d.open(ctx, "shell:"+command)
	if err != nil {
		return nil, err
	}

	return &stream{
		Reader: conn,
		conn:   conn,
		stop:   context.AfterFunc(ctx, func() { conn.Close() }),
	}, nil
}

// open switches a new connection to this device and requests service.
func (d *Device) open(ctx context.Context, service string) (net.Conn, error) {
	conn, err := d.transport.host(ctx, "host:transport:"+d.serial)
	if err != nil {
		return nil, err
	}

	if err := writeRequest(conn, service); err != nil {
		conn.Close()
		return nil, err
	}
	if err := readStatus(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func (d *Device) openSync(ctx context.Context) (net.Conn, error) {
	return d.open(ctx, "sync:")
}

func (d *Device) sync(ctx context.Context, fn func(*syncConn) error) error {
	conn, err := d.openSync(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	s := &syncConn{rw: conn}
	if err := fn(s); err != nil {
		return err
	}

	return s.quit()
}

type stream struct {
	io.Reader
	conn net.Conn
	stop func() bool
}

func (s *stream) Close() error {
	s.stop()
	return s.conn.Close()
}
