package fuse

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/data/errors"
	"github.com/mwantia/adbfs/device/memory"
	"github.com/mwantia/adbfs/log"
)

func TestErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{errors.NotFound(nil, "stat", "/emu1/a"), syscall.ENOENT},
		{errors.ReservedName("stat", "/.vscode"), syscall.ENOENT},
		{errors.NameConflict("rename", "/emu1/b"), syscall.EEXIST},
		{errors.CrossDevice("rename", "/emu1/a", "/emu2/a"), syscall.EXDEV},
		{errors.NotEmpty("rmdir: '/d': Directory not empty", "delete", "/emu1/d"), syscall.ENOTEMPTY},
		{errors.IsDirectory("readFile", "/"), syscall.EISDIR},
		{errors.ReadOnly("delete", "/emu1"), syscall.EROFS},
		{errors.Transport(errors.New("closed"), "stat", "/emu1/a"), syscall.EIO},
		{errors.New("unclassified"), syscall.EIO},
	}

	for _, tt := range tests {
		if got := Errno(tt.err); got != tt.want {
			t.Errorf("Errno(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestAddWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	host, err := NewHost(Options{
		Mountpoint:   filepath.Join(dir, "mnt"),
		WorkspaceDir: filepath.Join(dir, "workspace"),
	})
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	if err := host.AddWorkspaceRoot(t.Context(), "adbfs:/", adbfs.WorkspaceName); err != nil {
		t.Fatalf("AddWorkspaceRoot failed: %v", err)
	}
	if err := host.AddWorkspaceRoot(t.Context(), "adbfs:/", adbfs.WorkspaceName); err != nil {
		t.Fatalf("Repeated AddWorkspaceRoot failed: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dir, "workspace", adbfs.WorkspaceName))
	if err != nil {
		t.Fatalf("Readlink failed: %v", err)
	}
	if target != filepath.Join(dir, "mnt") {
		t.Errorf("Expected link to mountpoint, got %s", target)
	}

	if err := host.AddWorkspaceRoot(t.Context(), "adbfs:/emu1", adbfs.WorkspaceName); err == nil {
		t.Errorf("Expected conflicting workspace root to fail")
	}
	if err := host.AddWorkspaceRoot(t.Context(), "adbfs:/", "a/b"); err == nil {
		t.Errorf("Expected invalid name to fail")
	}
}

func TestTarget(t *testing.T) {
	host, err := NewHost(Options{Mountpoint: "/mnt/adbfs"})
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	for uri, want := range map[string]string{
		"adbfs:/":             "/mnt/adbfs",
		"adbfs:":              "/mnt/adbfs",
		"adbfs:/emu1":         "/mnt/adbfs/emu1",
		"adbfs:/emu1/sdcard/": "/mnt/adbfs/emu1/sdcard",
	} {
		if got := host.Target(uri); got != want {
			t.Errorf("Target(%q) = %s, want %s", uri, got, want)
		}
	}

	if _, err := NewHost(Options{}); err == nil {
		t.Errorf("Expected missing mountpoint to fail")
	}
}

func TestHandleBuffersWholeFile(t *testing.T) {
	transport := memory.NewTransport()
	dev := transport.Attach("emu1")
	dev.WriteFile("/a.txt", []byte("hello"))

	provider, err := adbfs.New(t.Context(), transport, adbfs.WithSettleDelay(0))
	if err != nil {
		t.Fatalf("Failed to create filesystem: %v", err)
	}
	defer provider.Close(context.Background())

	n := &node{
		mount: &mountState{provider: provider, logger: log.NewNop()},
		path:  "/emu1/a.txt",
	}

	fh, _, errno := n.Open(t.Context(), syscall.O_RDWR)
	if errno != 0 {
		t.Fatalf("Open failed: %v", errno)
	}
	h := fh.(*handle)

	buf := make([]byte, 3)
	result, errno := h.Read(t.Context(), buf, 1)
	if errno != 0 {
		t.Fatalf("Read failed: %v", errno)
	}
	content, _ := result.Bytes(buf)
	if string(content) != "ell" {
		t.Errorf("Expected 'ell', got '%s'", content)
	}

	if _, errno := h.Write(t.Context(), []byte(" world"), 5); errno != 0 {
		t.Fatalf("Write failed: %v", errno)
	}
	if size, dirty := h.pending(); !dirty || size != 11 {
		t.Errorf("Expected 11 pending bytes, got %d (dirty: %t)", size, dirty)
	}

	if errno := h.Release(t.Context()); errno != 0 {
		t.Fatalf("Release failed: %v", errno)
	}

	written, err := provider.ReadFile(t.Context(), "/emu1/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(written) != "hello world" {
		t.Errorf("Expected 'hello world', got '%s'", written)
	}

	fh, _, errno = n.Open(t.Context(), syscall.O_WRONLY|syscall.O_TRUNC)
	if errno != 0 {
		t.Fatalf("Open with truncate failed: %v", errno)
	}
	if errno := fh.(*handle).Flush(t.Context()); errno != 0 {
		t.Fatalf("Flush failed: %v", errno)
	}

	written, err = provider.ReadFile(t.Context(), "/emu1/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("Expected truncated file, got '%s'", written)
	}
}

func TestReadOnlyMount(t *testing.T) {
	n := &node{
		mount: &mountState{readOnly: true, logger: log.NewNop()},
		path:  "/emu1",
	}

	if _, _, errno := n.Open(t.Context(), syscall.O_WRONLY); errno != syscall.EROFS {
		t.Errorf("Expected EROFS, got %v", errno)
	}
	if errno := n.Unlink(t.Context(), "a.txt"); errno != syscall.EROFS {
		t.Errorf("Expected EROFS, got %v", errno)
	}
}

func TestResize(t *testing.T) {
	if got := resize([]byte("hello"), 2); string(got) != "he" {
		t.Errorf("Expected 'he', got '%s'", got)
	}
	if got := resize([]byte("he"), 4); len(got) != 4 || got[3] != 0 {
		t.Errorf("Expected zero padded content, got %v", got)
	}
}
