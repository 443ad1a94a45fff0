package s3

import (
	"errors"
	"io"
	"io/fs"
	"slices"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/adbfs/device/s3/s3test"
	"github.com/mwantia/adbfs/device/shell"
)

func TestObjectKeys(t *testing.T) {
	tests := []struct {
		path   string
		key    string
		prefix string
	}{
		{"/", "", ""},
		{"", "", ""},
		{"/sdcard", "sdcard", "sdcard/"},
		{"/sdcard/Download/", "sdcard/Download", "sdcard/Download/"},
		{"/sdcard/../data/a.txt", "data/a.txt", "data/a.txt/"},
	}

	for _, tt := range tests {
		if key := objectKey(tt.path); key != tt.key {
			t.Errorf("objectKey(%q) = %q, expected %q", tt.path, key, tt.key)
		}
		if prefix := dirPrefix(tt.path); prefix != tt.prefix {
			t.Errorf("dirPrefix(%q) = %q, expected %q", tt.path, prefix, tt.prefix)
		}
	}
}

func TestDeviceIDs(t *testing.T) {
	transport, err := NewTransport(&Config{Endpoint: "127.0.0.1:9000"})
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}

	if bucket := transport.bucket("emu1"); bucket != "adbfs-emu1" {
		t.Errorf("Unexpected bucket: %s", bucket)
	}
	if id, ok := transport.deviceID("adbfs-emu1"); !ok || id != "emu1" {
		t.Errorf("Unexpected device id: %s %v", id, ok)
	}
	if _, ok := transport.deviceID("backups"); ok {
		t.Errorf("Foreign bucket must not be a device")
	}
	if _, ok := transport.deviceID("adbfs-"); ok {
		t.Errorf("Bare prefix must not be a device")
	}
}

func newTestDevice(t *testing.T) (*Transport, *Device, *s3test.Server) {
	t.Helper()

	server := s3test.NewServer()
	t.Cleanup(server.Close)

	transport, err := NewTransport(&Config{
		Endpoint: server.Endpoint(),
		Region:   "us-east-1",
	})
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	if err := transport.Open(t.Context()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := transport.Attach(t.Context(), "emu1"); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	return transport, transport.Device("emu1").(*Device), server
}

func push(t *testing.T, dev *Device, p, content string) {
	t.Helper()

	if err := dev.Push(t.Context(), strings.NewReader(content), p, 0o644); err != nil {
		t.Fatalf("Push '%s' failed: %v", p, err)
	}
}

func TestDeviceStat(t *testing.T) {
	transport, dev, _ := newTestDevice(t)

	if err := dev.MakeDir(t.Context(), "/sdcard"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	push(t, dev, "/sdcard/a.txt", "hello")

	if _, err := transport.client.PutObject(t.Context(), dev.bucket, "implicit/child.txt",
		strings.NewReader("x"), 1, minio.PutObjectOptions{}); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	tests := []struct {
		path string
		name string
		dir  bool
		size int64
	}{
		{"/", "/", true, 0},
		{"/sdcard", "sdcard", true, 0},
		{"/sdcard/", "sdcard", true, 0},
		{"/sdcard/a.txt", "a.txt", false, 5},
		{"/implicit", "implicit", true, 0},
	}

	for _, tt := range tests {
		info, err := dev.Stat(t.Context(), tt.path)
		if err != nil {
			t.Errorf("Stat '%s' failed: %v", tt.path, err)
			continue
		}
		if info.Name() != tt.name || info.IsDir() != tt.dir || info.Size() != tt.size {
			t.Errorf("Stat '%s': got name=%s dir=%v size=%d", tt.path, info.Name(), info.IsDir(), info.Size())
		}
	}

	for _, p := range []string{"/missing", "/sdcard/missing.txt", "/impl"} {
		if _, err := dev.Stat(t.Context(), p); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Stat '%s': expected fs.ErrNotExist, got %v", p, err)
		}
	}

	if err := dev.Push(t.Context(), strings.NewReader("x"), "/missing/a.txt", 0o644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Push without parent: expected fs.ErrNotExist, got %v", err)
	}
}

func TestDeviceList(t *testing.T) {
	_, dev, _ := newTestDevice(t)

	if err := dev.MakeDir(t.Context(), "/sdcard"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := dev.MakeDir(t.Context(), "/sdcard/Download"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	push(t, dev, "/sdcard/a.txt", "a")
	push(t, dev, "/sdcard/Download/b.txt", "b")
	push(t, dev, "/init.rc", "on boot")

	infos, err := dev.List(t.Context(), "/sdcard")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
		if info.Name() == "Download" && !info.IsDir() {
			t.Errorf("Expected 'Download' to be a directory")
		}
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"Download", "a.txt"}) {
		t.Errorf("Expected [Download a.txt], got %v", names)
	}

	if _, err := dev.List(t.Context(), "/init.rc"); !errors.Is(err, shell.ErrNotDirectory) {
		t.Errorf("List of a file: expected ErrNotDirectory, got %v", err)
	}
}

func TestDeviceRoundTrip(t *testing.T) {
	_, dev, _ := newTestDevice(t)

	content := strings.Repeat("0123456789abcdef", 4096)
	push(t, dev, "/a.bin", content)
	push(t, dev, "/empty.bin", "")

	for p, expected := range map[string]string{"/a.bin": content, "/empty.bin": ""} {
		rc, err := dev.Pull(t.Context(), p)
		if err != nil {
			t.Fatalf("Pull '%s' failed: %v", p, err)
		}
		read, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Read '%s' failed: %v", p, err)
		}
		if string(read) != expected {
			t.Errorf("Content mismatch for '%s': %d bytes, expected %d", p, len(read), len(expected))
		}
	}

	if _, err := dev.Pull(t.Context(), "/"); !errors.Is(err, shell.ErrIsDirectory) {
		t.Errorf("Pull of a directory: expected ErrIsDirectory, got %v", err)
	}
}

func TestDeviceRename(t *testing.T) {
	_, dev, server := newTestDevice(t)

	push(t, dev, "/a.txt", "alpha")
	if err := dev.Rename(t.Context(), "/a.txt", "/b.txt"); err != nil {
		t.Fatalf("Rename of file failed: %v", err)
	}
	if _, err := dev.Stat(t.Context(), "/a.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected source to be gone, got %v", err)
	}

	if err := dev.MakeDir(t.Context(), "/src"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := dev.MakeDir(t.Context(), "/src/nested"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	push(t, dev, "/src/f.txt", "f")
	push(t, dev, "/src/nested/g.txt", "g")

	if err := dev.Rename(t.Context(), "/src", "/dst"); err != nil {
		t.Fatalf("Rename of directory failed: %v", err)
	}

	expected := []string{"b.txt", "dst/", "dst/f.txt", "dst/nested/", "dst/nested/g.txt"}
	if keys := server.Keys("adbfs-emu1"); !slices.Equal(keys, expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}

	if err := dev.MakeDir(t.Context(), "/other"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	push(t, dev, "/other/x.txt", "x")

	if err := dev.Rename(t.Context(), "/dst", "/other"); !errors.Is(err, shell.ErrNotEmpty) {
		t.Errorf("Rename onto non-empty directory: expected ErrNotEmpty, got %v", err)
	}
	if err := dev.Rename(t.Context(), "/b.txt", "/other"); !errors.Is(err, shell.ErrIsDirectory) {
		t.Errorf("Rename file onto directory: expected ErrIsDirectory, got %v", err)
	}
	if err := dev.Rename(t.Context(), "/missing", "/c.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename of missing source: expected fs.ErrNotExist, got %v", err)
	}
}

func TestDeviceRemoveDir(t *testing.T) {
	_, dev, _ := newTestDevice(t)

	if err := dev.MakeDir(t.Context(), "/d"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	if err := dev.MakeDir(t.Context(), "/d"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("MakeDir of existing directory: expected fs.ErrExist, got %v", err)
	}
	push(t, dev, "/d/f.txt", "f")

	if err := dev.RemoveDir(t.Context(), "/d"); !errors.Is(err, shell.ErrNotEmpty) {
		t.Errorf("Expected ErrNotEmpty, got %v", err)
	}
	if err := dev.RemoveDir(t.Context(), "/d/f.txt"); !errors.Is(err, shell.ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
	if err := dev.RemoveDir(t.Context(), "/"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Expected fs.ErrPermission for the device root, got %v", err)
	}

	if err := dev.Remove(t.Context(), "/d/f.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dev.RemoveDir(t.Context(), "/d"); err != nil {
		t.Fatalf("RemoveDir of emptied directory failed: %v", err)
	}
	if _, err := dev.Stat(t.Context(), "/d"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected directory to be gone, got %v", err)
	}
}

func TestDeviceShell(t *testing.T) {
	_, dev, _ := newTestDevice(t)

	if err := dev.MakeDir(t.Context(), "/d"); err != nil {
		t.Fatalf("MakeDir failed: %v", err)
	}
	push(t, dev, "/d/f.txt", "f")

	rc, err := dev.Shell(t.Context(), shell.RemoveDir("/d"))
	if err != nil {
		t.Fatalf("Shell failed: %v", err)
	}
	output, _ := io.ReadAll(rc)
	rc.Close()

	if !shell.IsNotEmpty(string(output)) {
		t.Errorf("Expected not-empty output, got %q", output)
	}
}

func TestTransportDevices(t *testing.T) {
	transport, _, server := newTestDevice(t)

	if err := transport.Attach(t.Context(), "emu2"); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := transport.Attach(t.Context(), "emu2"); err != nil {
		t.Fatalf("Attach of existing device failed: %v", err)
	}
	if _, err := transport.client.PutObject(t.Context(), "adbfs-emu2", "a.txt",
		strings.NewReader("a"), 1, minio.PutObjectOptions{}); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := transport.client.MakeBucket(t.Context(), "backups", minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("MakeBucket failed: %v", err)
	}

	devices, err := transport.ListDevices(t.Context())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "emu1" || devices[1].ID != "emu2" {
		t.Errorf("Expected [emu1 emu2], got %v", devices)
	}

	if err := transport.Detach(t.Context(), "emu2"); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if keys := server.Keys("adbfs-emu2"); keys != nil {
		t.Errorf("Expected bucket to be removed, got keys %v", keys)
	}

	devices, err = transport.ListDevices(t.Context())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "emu1" {
		t.Errorf("Expected [emu1], got %v", devices)
	}

	if _, err := transport.Device("emu2").Stat(t.Context(), "/a.txt"); err == nil || errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected a remote error for a detached device, got %v", err)
	}
}
