package adb

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/log"
)

// Transport talks to the adb server listening on Address.
type Transport struct {
	config *Config
	dialer *net.Dialer
	logger *log.Logger
}

type Config struct {
	// Address of the adb server (default: "127.0.0.1:5037")
	Address string

	// DialTimeout bounds establishing a connection, not the operation itself
	DialTimeout time.Duration

	Logger *log.Logger
}

var (
	_ device.Transport = (*Transport)(nil)
	_ device.Tracker   = (*Transport)(nil)
)

func NewTransport(config *Config) *Transport {
	if config == nil {
		config = &Config{}
	}
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.NewNop()
	}

	return &Transport{
		config: config,
		dialer: &net.Dialer{Timeout: config.DialTimeout},
		logger: config.Logger,
	}
}

// Name returns the identifier name defined for this transport
func (*Transport) Name() string {
	return "adb"
}

func (t *Transport) Address() string {
	return t.config.Address
}

// Open verifies that the adb server is reachable.
func (t *Transport) Open(ctx context.Context) error {
	version, err := t.Version(ctx)
	if err != nil {
		return err
	}

	t.logger.Debug("Connected to adb server '%s' (version %d)", t.config.Address, version)
	return nil
}

// Close is part of the lifecycle behaviour; connections are per request.
func (t *Transport) Close(ctx context.Context) error {
	return nil
}

func (t *Transport) Capabilities() *device.Capabilities {
	return device.NewCapabilities(
		device.CapabilityTrack,
		device.CapabilityShell,
	)
}

// Version returns the protocol version of the adb server.
func (t *Transport) Version(ctx context.Context) (int, error) {
	conn, err := t.host(ctx, "host:version")
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	hex, err := readString(conn)
	if err != nil {
		return 0, err
	}

	var version int
	if _, err := fmt.Sscanf(hex, "%x", &version); err != nil {
		return 0, fmt.Errorf("%w: invalid version '%s'", ErrProtocol, hex)
	}

	return version, nil
}

func (t *Transport) ListDevices(ctx context.Context) ([]data.DeviceInfo, error) {
	conn, err := t.host(ctx, "host:devices")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	list, err := readString(conn)
	if err != nil {
		return nil, err
	}

	return parseDevices(list), nil
}

// Track follows host:track-devices until ctx is done or the server goes away.
func (t *Transport) Track(ctx context.Context, fn func([]data.DeviceInfo)) error {
	conn, err := t.host(ctx, "host:track-devices")
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	r := bufio.NewReader(conn)
	for {
		list, err := readString(r)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		fn(parseDevices(list))
	}
}

func (t *Transport) Device(id string) device.Client {
	return &Device{
		transport: t,
		serial:    id,
	}
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	return t.dialer.DialContext(ctx, "tcp", t.config.Address)
}

// host dials the server and issues a single host request.
func (t *Transport) host(ctx context.Context, request string) (net.Conn, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := writeRequest(conn, request); err != nil {
		conn.Close()
		return nil, err
	}
	if err := readStatus(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}
