package consul

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/adb"
	"github.com/mwantia/adbfs/log"
)

// Transport discovers devices of a device farm through Consul.
//
// Every healthy instance of Service is one device: its address and port point
// at the adb server the device is attached to, the "serial" meta key names the
// device on that server. All file operations are delegated to that adb server.
type Transport struct {
	mu     sync.RWMutex
	client *api.Client
	config *Config
	logger *log.Logger

	endpoints map[string]endpoint
	servers   map[string]*adb.Transport
}

// Config contains configuration options for the Consul transport
type Config struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Service name devices are registered under (default: "adb-device")
	Service string

	// Tag filters the registered instances (optional)
	Tag string

	// WaitTime bounds a single blocking query (default: 5m)
	WaitTime time.Duration

	Logger *log.Logger
}

type endpoint struct {
	address string
	serial  string
}

var (
	_ device.Transport = (*Transport)(nil)
	_ device.Tracker   = (*Transport)(nil)
)

func NewTransport(config *Config) (*Transport, error) {
	if config == nil {
		config = &Config{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Service == "" {
		config.Service = "adb-device"
	}
	if config.WaitTime <= 0 {
		config.WaitTime = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.NewNop()
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &Transport{
		client:    client,
		config:    config,
		logger:    config.Logger,
		endpoints: make(map[string]endpoint),
		servers:   make(map[string]*adb.Transport),
	}, nil
}

// Name returns the identifier name defined for this transport
func (*Transport) Name() string {
	return "consul"
}

// Open verifies that the Consul agent has a leader.
func (t *Transport) Open(ctx context.Context) error {
	_, err := t.client.Status().LeaderWithQueryOptions((&api.QueryOptions{}).WithContext(ctx))
	return err
}

func (t *Transport) Close(ctx context.Context) error {
	return nil
}

func (t *Transport) Capabilities() *device.Capabilities {
	return device.NewCapabilities(
		device.CapabilityTrack,
		device.CapabilityShell,
	)
}

func (t *Transport) ListDevices(ctx context.Context) ([]data.DeviceInfo, error) {
	devices, _, err := t.query(ctx, 0)
	return devices, err
}

// Track follows the service catalog with blocking queries.
func (t *Transport) Track(ctx context.Context, fn func([]data.DeviceInfo)) error {
	var index uint64
	var last []data.DeviceInfo

	for first := true; ; first = false {
		devices, next, err := t.query(ctx, index)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// Reset on index regressions, e.g. after a leader election
		if next < index {
			next = 0
		}
		index = next

		if first || !equal(last, devices) {
			last = devices
			fn(devices)
		}
	}
}

func (t *Transport) Device(id string) device.Client {
	return &Device{
		transport: t,
		id:        id,
	}
}

func (t *Transport) query(ctx context.Context, index uint64) ([]data.DeviceInfo, uint64, error) {
	opts := &api.QueryOptions{
		WaitIndex: index,
		WaitTime:  t.config.WaitTime,
	}

	entries, meta, err := t.client.Health().Service(t.config.Service, t.config.Tag, true, opts.WithContext(ctx))
	if err != nil {
		return nil, 0, err
	}

	endpoints := endpointsFromEntries(entries)

	t.mu.Lock()
	t.endpoints = endpoints
	t.mu.Unlock()

	devices := make([]data.DeviceInfo, 0, len(endpoints))
	for id := range endpoints {
		devices = append(devices, data.DeviceInfo{ID: id, State: adb.StateDevice})
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	return devices, meta.LastIndex, nil
}

// resolve returns the adb client responsible for a device.
func (t *Transport) resolve(ctx context.Context, id string) (device.Client, error) {
	t.mu.RLock()
	ep, ok := t.endpoints[id]
	t.mu.RUnlock()

	if !ok {
		if _, err := t.ListDevices(ctx); err != nil {
			return nil, err
		}

		t.mu.RLock()
		ep, ok = t.endpoints[id]
		t.mu.RUnlock()
		if !ok {
			return nil, &adb.ServerError{Message: "device '" + id + "' not found"}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	server, ok := t.servers[ep.address]
	if !ok {
		server = adb.NewTransport(&adb.Config{
			Address: ep.address,
			Logger:  t.logger.Named(ep.address),
		})
		t.servers[ep.address] = server
	}

	return server.Device(ep.serial), nil
}

func endpointsFromEntries(entries []*api.ServiceEntry) map[string]endpoint {
	endpoints := make(map[string]endpoint, len(entries))
	for _, entry := range entries {
		svc := entry.Service
		if svc == nil {
			continue
		}

		address := svc.Address
		if address == "" && entry.Node != nil {
			address = entry.Node.Address
		}
		port := svc.Port
		if port == 0 {
			port = 5037
		}

		id := svc.ID
		serial := svc.Meta["serial"]
		if serial == "" {
			serial = svc.ID
		}
		if deviceID := svc.Meta["device_id"]; deviceID != "" {
			id = deviceID
		}

		endpoints[id] = endpoint{
			address: net.JoinHostPort(address, strconv.Itoa(port)),
			serial:  serial,
		}
	}

	return endpoints
}

func equal(a, b []data.DeviceInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
