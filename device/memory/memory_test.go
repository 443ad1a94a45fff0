package memory

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"sort"
	"testing"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device/shell"
)

func TestDeviceListDirectChildren(t *testing.T) {
	dev := NewDevice("emu1")
	dev.WriteFile("/sdcard/a.txt", []byte("hello"))
	dev.WriteFile("/sdcard/Download/b.bin", []byte{1, 2, 3})
	dev.MkdirAll("/data")

	root, err := dev.List(t.Context(), "/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if names := names(root); len(names) != 2 || names[0] != "data" || names[1] != "sdcard" {
		t.Errorf("Unexpected root listing: %v", names)
	}

	sdcard, err := dev.List(t.Context(), "/sdcard")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if names := names(sdcard); len(names) != 2 || names[0] != "Download" || names[1] != "a.txt" {
		t.Errorf("Unexpected sdcard listing: %v", names)
	}

	if _, err := dev.List(t.Context(), "/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestDevicePushPull(t *testing.T) {
	dev := NewDevice("emu1")

	if err := dev.Push(t.Context(), bytes.NewReader([]byte("hello")), "/a.txt", 0o644); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	info, err := dev.Stat(t.Context(), "/a.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.Mode().IsRegular() || info.Size() != 5 {
		t.Errorf("Unexpected stat: mode=%v size=%d", info.Mode(), info.Size())
	}

	r, err := dev.Pull(t.Context(), "/a.txt")
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	defer r.Close()

	content, _ := io.ReadAll(r)
	if string(content) != "hello" {
		t.Errorf("Expected 'hello', got %q", content)
	}

	if err := dev.Push(t.Context(), bytes.NewReader(nil), "/missing/a.txt", 0o644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for missing parent, got %v", err)
	}
}

func TestDeviceFaults(t *testing.T) {
	dev := NewDevice("emu1")
	dev.WriteFile("/a.txt", []byte("0123456789"))

	broken := errors.New("connection reset")
	dev.Fail("pull", broken)

	r, err := dev.Pull(t.Context(), "/a.txt")
	if err != nil {
		t.Fatalf("Pull failed early: %v", err)
	}

	content, err := io.ReadAll(r)
	if !errors.Is(err, broken) {
		t.Errorf("Expected stream error, got %v", err)
	}
	if string(content) != "01234" {
		t.Errorf("Expected partial content, got %q", content)
	}

	dev.Fail("pull", nil)
	dev.Fail("stat", broken)
	if _, err := dev.Stat(t.Context(), "/a.txt"); !errors.Is(err, broken) {
		t.Errorf("Expected stat fault, got %v", err)
	}
}

func TestDeviceRenameDirectory(t *testing.T) {
	dev := NewDevice("emu1")
	dev.WriteFile("/d/x/1.txt", []byte("1"))
	dev.WriteFile("/d/2.txt", []byte("2"))

	if err := dev.Rename(t.Context(), "/d", "/e"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := dev.Stat(t.Context(), "/d"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected source to be gone, got %v", err)
	}
	if info, err := dev.Stat(t.Context(), "/e/x/1.txt"); err != nil || info.Size() != 1 {
		t.Errorf("Expected moved descendant, got %v", err)
	}

	if err := dev.RemoveDir(t.Context(), "/e"); !errors.Is(err, shell.ErrNotEmpty) {
		t.Errorf("Expected ErrNotEmpty, got %v", err)
	}
}

func TestTransportTracking(t *testing.T) {
	transport := NewTransport()
	transport.Attach("emu1")

	snapshots := make(chan []data.DeviceInfo, 8)
	done := make(chan error, 1)

	go func() {
		done <- transport.Track(t.Context(), func(devices []data.DeviceInfo) {
			snapshots <- devices
		})
	}()

	expect := func(ids ...string) {
		t.Helper()
		select {
		case devices := <-snapshots:
			if len(devices) != len(ids) {
				t.Fatalf("Expected %v, got %v", ids, devices)
			}
			for i, id := range ids {
				if devices[i].ID != id {
					t.Fatalf("Expected %v, got %v", ids, devices)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for snapshot %v", ids)
		}
	}

	expect("emu1")
	transport.Attach("emu2")
	expect("emu1", "emu2")
	transport.Detach("emu1")
	expect("emu2")

	broken := errors.New("adb server killed")
	transport.BreakTracking(broken)

	select {
	case err := <-done:
		if !errors.Is(err, broken) {
			t.Errorf("Expected tracking error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for tracking to end")
	}
}

func TestDetachedDevice(t *testing.T) {
	transport := NewTransport()

	if _, err := transport.Device("ghost").Stat(t.Context(), "/"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func names(infos []fs.FileInfo) []string {
	result := make([]string, 0, len(infos))
	for _, info := range infos {
		result = append(result, info.Name())
	}
	sort.Strings(result)

	return result
}
