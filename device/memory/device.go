package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/shell"
	"github.com/tidwall/btree"
)

// Device is an emulated device whose filesystem lives in an ordered tree
// keyed by absolute path.
type Device struct {
	mu sync.RWMutex

	id     string
	nodes  *btree.Map[string, *node]
	faults map[string]error
}

type node struct {
	mode    fs.FileMode
	content []byte
	modTime time.Time
}

var (
	_ device.Client = (*Device)(nil)
	_ shell.FS      = (*Device)(nil)
)

func NewDevice(id string) *Device {
	d := &Device{
		id:     id,
		nodes:  btree.NewMap[string, *node](0),
		faults: make(map[string]error),
	}

	d.nodes.Set("/", &node{
		mode:    fs.ModeDir | 0o755,
		modTime: time.Now(),
	})

	return d
}

func (d *Device) ID() string {
	return d.id
}

// Fail makes every following call of op ("stat", "list", "pull", "push",
// "shell") fail with err. A nil err clears the fault.
// A failing pull delivers half of the content before the error.
func (d *Device) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.faults, op)
		return
	}

	d.faults[op] = err
}

// WriteFile seeds a file, creating missing parent directories.
func (d *Device) WriteFile(p string, content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mkdirAll(path.Dir(clean(p)))
	d.nodes.Set(clean(p), &node{
		mode:    0o644,
		content: bytes.Clone(content),
		modTime: time.Now(),
	})
}

// MkdirAll seeds a directory including all parents.
func (d *Device) MkdirAll(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mkdirAll(clean(p))
}

func (d *Device) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.fault(ctx, "stat"); err != nil {
		return nil, err
	}

	return d.stat(clean(p))
}

func (d *Device) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.fault(ctx, "list"); err != nil {
		return nil, err
	}

	key := clean(p)
	n, ok := d.nodes.Get(key)
	if !ok {
		return nil, pathError("list", key, fs.ErrNotExist)
	}
	if !n.mode.IsDir() {
		return nil, pathError("list", key, shell.ErrNotDirectory)
	}

	result := make([]fs.FileInfo, 0)
	d.children(key, func(child string, n *node) {
		result = append(result, n.info(path.Base(child)))
	})

	return result, nil
}

func (d *Device) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := clean(p)
	n, ok := d.nodes.Get(key)
	if !ok {
		return nil, pathError("pull", key, fs.ErrNotExist)
	}
	if n.mode.IsDir() {
		return nil, pathError("pull", key, shell.ErrIsDirectory)
	}

	content := bytes.Clone(n.content)
	if err, failing := d.faults["pull"]; failing {
		partial := bytes.NewReader(content[:len(content)/2])
		return io.NopCloser(io.MultiReader(partial, &failingReader{err: err})), nil
	}

	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *Device) Push(ctx context.Context, r io.Reader, p string, mode fs.FileMode) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.fault(ctx, "push"); err != nil {
		return err
	}

	key := clean(p)
	if err := d.parentDir(key); err != nil {
		return pathError("push", key, err)
	}
	if n, ok := d.nodes.Get(key); ok && n.mode.IsDir() {
		return pathError("push", key, shell.ErrIsDirectory)
	}

	d.nodes.Set(key, &node{
		mode:    mode.Perm(),
		content: content,
		modTime: time.Now(),
	})

	return nil
}

func (d *Device) Shell(ctx context.Context, command string) (io.ReadCloser, error) {
	d.mu.RLock()
	err := d.fault(ctx, "shell")
	d.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	return shell.Output(ctx, d, command), nil
}

func (d *Device) Rename(ctx context.Context, from, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	src, dst := clean(from), clean(to)
	if src == "/" {
		return fs.ErrPermission
	}

	n, ok := d.nodes.Get(src)
	if !ok {
		return fs.ErrNotExist
	}
	if err := d.parentDir(dst); err != nil {
		return err
	}

	if existing, ok := d.nodes.Get(dst); ok {
		switch {
		case existing.mode.IsDir() && !n.mode.IsDir():
			return shell.ErrIsDirectory
		case !existing.mode.IsDir() && n.mode.IsDir():
			return shell.ErrNotDirectory
		case existing.mode.IsDir() && d.hasChildren(dst):
			return shell.ErrNotEmpty
		}
	}

	moved := map[string]*node{src: n}
	if n.mode.IsDir() {
		d.descendants(src, func(key string, child *node) {
			moved[key] = child
		})
	}

	for key := range moved {
		d.nodes.Delete(key)
	}
	for key, child := range moved {
		d.nodes.Set(dst+strings.TrimPrefix(key, src), child)
	}

	return nil
}

func (d *Device) Remove(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := clean(p)
	n, ok := d.nodes.Get(key)
	if !ok {
		return fs.ErrNotExist
	}
	if n.mode.IsDir() {
		return shell.ErrIsDirectory
	}

	d.nodes.Delete(key)
	return nil
}

func (d *Device) RemoveDir(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := clean(p)
	n, ok := d.nodes.Get(key)
	if !ok {
		return fs.ErrNotExist
	}
	if !n.mode.IsDir() {
		return shell.ErrNotDirectory
	}
	if key == "/" {
		return fs.ErrPermission
	}
	if d.hasChildren(key) {
		return shell.ErrNotEmpty
	}

	d.nodes.Delete(key)
	return nil
}

func (d *Device) MakeDir(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := clean(p)
	if _, ok := d.nodes.Get(key); ok {
		return fs.ErrExist
	}
	if err := d.parentDir(key); err != nil {
		return err
	}

	d.nodes.Set(key, &node{
		mode:    fs.ModeDir | 0o755,
		modTime: time.Now(),
	})

	return nil
}

func (d *Device) stat(key string) (fs.FileInfo, error) {
	n, ok := d.nodes.Get(key)
	if !ok {
		return nil, pathError("stat", key, fs.ErrNotExist)
	}

	return n.info(path.Base(key)), nil
}

func (d *Device) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return d.faults[op]
}

func (d *Device) parentDir(key string) error {
	parent, ok := d.nodes.Get(path.Dir(key))
	if !ok {
		return fs.ErrNotExist
	}
	if !parent.mode.IsDir() {
		return shell.ErrNotDirectory
	}

	return nil
}

func (d *Device) mkdirAll(key string) {
	for dir := key; ; dir = path.Dir(dir) {
		if _, ok := d.nodes.Get(dir); !ok {
			d.nodes.Set(dir, &node{
				mode:    fs.ModeDir | 0o755,
				modTime: time.Now(),
			})
		}
		if dir == "/" {
			return
		}
	}
}

func (d *Device) hasChildren(key string) bool {
	found := false
	d.descendants(key, func(string, *node) {
		found = true
	})

	return found
}

// descendants visits every node below key in path order.
func (d *Device) descendants(key string, fn func(string, *node)) {
	prefix := strings.TrimSuffix(key, "/") + "/"
	d.nodes.Ascend(prefix, func(child string, n *node) bool {
		if child == prefix {
			return true
		}
		if !strings.HasPrefix(child, prefix) {
			return false
		}

		fn(child, n)
		return true
	})
}

// children visits the direct children of key.
func (d *Device) children(key string, fn func(string, *node)) {
	prefix := strings.TrimSuffix(key, "/") + "/"
	d.descendants(key, func(child string, n *node) {
		if !strings.Contains(child[len(prefix):], "/") {
			fn(child, n)
		}
	})
}

func (n *node) info(name string) fs.FileInfo {
	return &device.FileInfo{
		FileName:    name,
		FileSize:    int64(len(n.content)),
		FileMode:    n.mode,
		FileModTime: n.modTime,
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func pathError(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}

func (d *Device) String() string {
	return fmt.Sprintf("memory device '%s'", d.id)
}
