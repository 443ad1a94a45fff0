package fuse

import (
	"context"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mwantia/adbfs"
)

// handle buffers the whole file. The bridge has no range reads, so content
// is pulled once on open and pushed back on flush when it was modified.
type handle struct {
	node *node

	mu      sync.Mutex
	content []byte
	dirty   bool
}

var (
	_ fs.FileReader   = (*handle)(nil)
	_ fs.FileWriter   = (*handle)(nil)
	_ fs.FileFlusher  = (*handle)(nil)
	_ fs.FileFsyncer  = (*handle)(nil)
	_ fs.FileReleaser = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off >= int64(len(h.content)) {
		return gofuse.ReadResultData(nil), 0
	}

	end := min(off+int64(len(dest)), int64(len(h.content)))
	return gofuse.ReadResultData(h.content[off:end]), 0
}

func (h *handle) Write(ctx context.Context, p []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if end := off + int64(len(p)); end > int64(len(h.content)) {
		h.content = resize(h.content, uint64(end))
	}
	copy(h.content[off:], p)
	h.dirty = true

	return uint32(len(p)), 0
}

func (h *handle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return 0
	}

	if err := h.node.mount.provider.WriteFile(ctx, h.node.path, h.content, adbfs.WriteOptions{Create: true, Overwrite: true}); err != nil {
		return h.node.errno("flush", err)
	}
	h.dirty = false

	return 0
}

func (h *handle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return h.Flush(ctx)
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return h.Flush(ctx)
}

func (h *handle) truncate(size uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.content = resize(h.content, size)
	h.dirty = true
}

// pending returns the buffered size while modifications are not flushed yet.
func (h *handle) pending() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return uint64(len(h.content)), h.dirty
}
