package consul

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/adbfs/data"
)

func TestEndpointsFromEntries(t *testing.T) {
	entries := []*api.ServiceEntry{
		{
			Node: &api.Node{Address: "10.0.0.5"},
			Service: &api.AgentService{
				ID:   "rack1-slot3",
				Port: 5037,
				Meta: map[string]string{"serial": "R58M123ABC"},
			},
		},
		{
			Node: &api.Node{Address: "10.0.0.6"},
			Service: &api.AgentService{
				ID:      "rack2-slot1",
				Address: "10.0.1.6",
				Meta:    map[string]string{"serial": "emulator-5554", "device_id": "pixel-8"},
			},
		},
		{Node: &api.Node{Address: "10.0.0.7"}},
	}

	endpoints := endpointsFromEntries(entries)
	if len(endpoints) != 2 {
		t.Fatalf("Expected 2 endpoints, got %d", len(endpoints))
	}

	if ep := endpoints["rack1-slot3"]; ep.address != "10.0.0.5:5037" || ep.serial != "R58M123ABC" {
		t.Errorf("Unexpected endpoint: %+v", ep)
	}
	if ep := endpoints["pixel-8"]; ep.address != "10.0.1.6:5037" || ep.serial != "emulator-5554" {
		t.Errorf("Unexpected endpoint: %+v", ep)
	}
}

func TestEqual(t *testing.T) {
	a := []data.DeviceInfo{{ID: "a", State: "device"}}
	b := []data.DeviceInfo{{ID: "a", State: "offline"}}

	if !equal(a, a) || equal(a, b) || equal(a, nil) {
		t.Errorf("Unexpected equality results")
	}
}

// catalog serves the health endpoint with blocking query semantics.
type catalog struct {
	mu      sync.Mutex
	index   uint64
	entries []*api.ServiceEntry
	failing bool
	changed chan struct{}
}

func newCatalog() *catalog {
	return &catalog{changed: make(chan struct{})}
}

// update bumps the index, waking all blocked queries.
func (c *catalog) update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn()
	c.index++
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *catalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/status/leader":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`"127.0.0.1:8300"`))
		return
	case "/v1/health/service/adb-device":
	default:
		http.NotFound(w, r)
		return
	}

	wait, _ := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	for {
		c.mu.Lock()
		if c.failing {
			c.mu.Unlock()
			http.Error(w, "rpc error", http.StatusInternalServerError)
			return
		}
		if c.index > wait {
			body, _ := json.Marshal(c.entries)
			index := c.index
			c.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Consul-Index", strconv.FormatUint(index, 10))
			w.Header().Set("X-Consul-LastContact", "0")
			w.Header().Set("X-Consul-KnownLeader", "true")
			w.Write(body)
			return
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-r.Context().Done():
			return
		}
	}
}

func serviceEntry(id string) *api.ServiceEntry {
	return &api.ServiceEntry{
		Node:    &api.Node{Address: "10.0.0.5"},
		Service: &api.AgentService{ID: id, Port: 5037},
	}
}

func deviceIDs(devices []data.DeviceInfo) string {
	ids := make([]string, 0, len(devices))
	for _, info := range devices {
		ids = append(ids, info.ID)
	}

	return strings.Join(ids, ",")
}

func newTestTransport(t *testing.T, c *catalog) *Transport {
	t.Helper()

	server := httptest.NewServer(c)
	t.Cleanup(server.Close)

	transport, err := NewTransport(&Config{
		Address:  strings.TrimPrefix(server.URL, "http://"),
		WaitTime: time.Second,
	})
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	if err := transport.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	return transport
}

func TestTrack(t *testing.T) {
	c := newCatalog()
	c.update(func() {
		c.entries = []*api.ServiceEntry{serviceEntry("emu2"), serviceEntry("emu1")}
	})
	transport := newTestTransport(t, c)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	events := make(chan string, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- transport.Track(ctx, func(devices []data.DeviceInfo) {
			events <- deviceIDs(devices)
		})
	}()

	next := func() string {
		t.Helper()

		select {
		case ids := <-events:
			return ids
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for device list")
			return ""
		}
	}

	if ids := next(); ids != "emu1,emu2" {
		t.Errorf("Expected initial list [emu1,emu2], got [%s]", ids)
	}

	// Same devices under a new index must not produce an event
	c.update(func() {})
	c.update(func() {
		c.entries = []*api.ServiceEntry{serviceEntry("emu1")}
	})

	if ids := next(); ids != "emu1" {
		t.Errorf("Expected [emu1] after change, got [%s]", ids)
	}

	c.update(func() {
		c.entries = nil
	})
	if ids := next(); ids != "" {
		t.Errorf("Expected empty list, got [%s]", ids)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Expected nil after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Track did not return after cancellation")
	}

	select {
	case ids := <-events:
		t.Errorf("Unexpected device list [%s]", ids)
	default:
	}
}

func TestTrackError(t *testing.T) {
	c := newCatalog()
	c.update(func() {
		c.entries = []*api.ServiceEntry{serviceEntry("emu1")}
	})
	transport := newTestTransport(t, c)

	events := make(chan string, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- transport.Track(t.Context(), func(devices []data.DeviceInfo) {
			events <- deviceIDs(devices)
		})
	}()

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for device list")
	}

	c.update(func() {
		c.failing = true
	})

	select {
	case err := <-errc:
		if err == nil {
			t.Errorf("Expected an error from a failing catalog")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Track did not return on catalog failure")
	}
}

func TestListDevices(t *testing.T) {
	c := newCatalog()
	c.update(func() {
		c.entries = []*api.ServiceEntry{serviceEntry("emu1")}
	})
	transport := newTestTransport(t, c)

	devices, err := transport.ListDevices(t.Context())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "emu1" || devices[0].State != "device" {
		t.Errorf("Unexpected devices: %v", devices)
	}

	transport.mu.RLock()
	ep, ok := transport.endpoints["emu1"]
	transport.mu.RUnlock()
	if !ok || ep.address != "10.0.0.5:5037" {
		t.Errorf("Expected endpoint to be cached, got %+v", ep)
	}
}
