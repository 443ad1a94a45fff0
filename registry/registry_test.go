package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 64)}
}

func (r *recorder) record(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recorder) wait(t *testing.T, count int) []Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.events) >= count {
			events := append([]Event(nil), r.events...)
			r.mu.Unlock()
			return events
		}
		r.mu.Unlock()

		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("Timed out waiting for %d events", count)
		}
	}
}

// polled hides the native tracker of the memory transport.
type polled struct {
	*memory.Transport
}

func (p polled) Capabilities() *device.Capabilities {
	return device.NewCapabilities(device.CapabilityEmulated)
}

func TestRegistryTracking(t *testing.T) {
	factories := map[string]func(*memory.Transport) device.Transport{
		"native": func(m *memory.Transport) device.Transport { return m },
		"polled": func(m *memory.Transport) device.Transport { return polled{m} },
	}

	for name, factory := range factories {
		t.Run(name, func(tst *testing.T) {
			transport := memory.NewTransport()
			transport.Attach("emu1")

			rec := newRecorder()
			reg, err := New(factory(transport),
				WithListener(rec.record),
				WithPollInterval(10*time.Millisecond))
			if err != nil {
				tst.Fatalf("New failed: %v", err)
			}

			if err := reg.Start(); err != nil {
				tst.Fatalf("Start failed: %v", err)
			}
			if reg.State() != StateTracking {
				tst.Fatalf("Expected tracking state, got %v", reg.State())
			}

			events := rec.wait(tst, 1)
			if events[0].Type != EventAttach || events[0].Device.ID != "emu1" {
				tst.Errorf("Unexpected initial event: %+v", events[0])
			}

			transport.Attach("emu2")
			events = rec.wait(tst, 2)
			if events[1].Type != EventAttach || events[1].Device.ID != "emu2" {
				tst.Errorf("Unexpected attach event: %+v", events[1])
			}

			transport.Detach("emu1")
			events = rec.wait(tst, 3)
			if events[2].Type != EventDetach || events[2].Device.ID != "emu1" {
				tst.Errorf("Unexpected detach event: %+v", events[2])
			}

			if err := reg.Stop(tst.Context()); err != nil {
				tst.Fatalf("Stop failed: %v", err)
			}
			if reg.State() != StateStopped {
				tst.Errorf("Expected stopped state, got %v", reg.State())
			}
		})
	}
}

func TestRegistryStartTwice(t *testing.T) {
	reg, _ := New(memory.NewTransport())

	if err := reg.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	if err := reg.Start(); !errors.Is(err, data.ErrTrackerStarted) {
		t.Errorf("Expected ErrTrackerStarted, got %v", err)
	}
}

func TestRegistryStopWithoutStart(t *testing.T) {
	reg, _ := New(memory.NewTransport())

	if err := reg.Stop(t.Context()); err != nil {
		t.Errorf("Stop without start failed: %v", err)
	}
	if reg.State() != StateStopped {
		t.Errorf("Expected stopped state, got %v", reg.State())
	}
	if err := reg.Start(); !errors.Is(err, data.ErrTrackerStarted) {
		t.Errorf("Expected stopped registry to refuse tracking, got %v", err)
	}
}

// stubborn ignores cancellation until released.
type stubborn struct {
	*memory.Transport
	release chan struct{}
}

func (s stubborn) Track(ctx context.Context, fn func([]data.DeviceInfo)) error {
	<-s.release
	return nil
}

func TestRegistryStopTimeout(t *testing.T) {
	transport := stubborn{
		Transport: memory.NewTransport(),
		release:   make(chan struct{}),
	}
	reg, _ := New(transport)

	if err := reg.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if err := reg.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if reg.State() != StateStopped {
		t.Errorf("Expected stopped state after timeout, got %v", reg.State())
	}
	if err := reg.Start(); !errors.Is(err, data.ErrTrackerStarted) {
		t.Errorf("Expected stopped registry to refuse tracking, got %v", err)
	}

	close(transport.release)

	if err := reg.Stop(t.Context()); err != nil {
		t.Errorf("Stop after release failed: %v", err)
	}
	if reg.State() != StateStopped || reg.Err() != nil {
		t.Errorf("Expected clean stopped state, got %v (%v)", reg.State(), reg.Err())
	}
}

func TestRegistryTrackerError(t *testing.T) {
	transport := memory.NewTransport()
	rec := newRecorder()
	reg, _ := New(transport, WithListener(rec.record))

	if err := reg.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	transport.Attach("emu1")
	rec.wait(t, 1)

	transport.BreakTracking(errors.New("adb server killed"))

	deadline := time.Now().Add(2 * time.Second)
	for reg.State() != StateErrored {
		if time.Now().After(deadline) {
			t.Fatalf("Expected errored state, got %v", reg.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !errors.Is(reg.Err(), data.ErrTracker) {
		t.Errorf("Expected ErrTracker, got %v", reg.Err())
	}

	if err := reg.Stop(t.Context()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if reg.State() != StateErrored {
		t.Errorf("Errored state must be terminal, got %v", reg.State())
	}
}

func TestRegistryListAttached(t *testing.T) {
	transport := memory.NewTransport()
	transport.Attach("emu1")
	transport.Attach("emu2")

	reg, _ := New(transport)
	devices, err := reg.ListAttached(t.Context())
	if err != nil {
		t.Fatalf("ListAttached failed: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("Expected 2 devices, got %v", devices)
	}
}
