package fuse

import (
	"context"
	"path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/log"
)

// mountState is shared by every node of one mount.
type mountState struct {
	provider adbfs.Provider
	readOnly bool
	timeout  time.Duration
	logger   *log.Logger
}

// node addresses a single virtual path. Nodes hold no metadata; every
// attribute is fetched from the provider.
type node struct {
	fs.Inode

	mount *mountState
	path  string
}

var (
	_ fs.InodeEmbedder = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func (n *node) child(name string) string {
	return path.Join(n.path, name)
}

func (n *node) newChild(ctx context.Context, name string, entry data.Entry, out *gofuse.EntryOut) *fs.Inode {
	n.mount.fill(&out.Attr, entry)
	out.SetEntryTimeout(n.mount.timeout)
	out.SetAttrTimeout(n.mount.timeout)

	return n.NewInode(ctx, &node{mount: n.mount, path: n.child(name)}, fs.StableAttr{
		Mode: out.Attr.Mode & syscall.S_IFMT,
	})
}

func (n *node) errno(op string, err error) syscall.Errno {
	errno := Errno(err)
	if errno == syscall.EIO {
		n.mount.logger.Error("%s %s: %v", op, n.path, err)
	}

	return errno
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	entry, err := n.mount.provider.Stat(ctx, n.path)
	if err != nil {
		return n.errno("getattr", err)
	}

	if h, ok := f.(*handle); ok {
		if size, dirty := h.pending(); dirty {
			entry.Size = size
		}
	}

	n.mount.fill(&out.Attr, entry)
	out.SetTimeout(n.mount.timeout)

	return 0
}

// Setattr only honours size changes; ownership, mode and times are not
// part of the device filesystem model.
func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if n.mount.readOnly {
			return syscall.EROFS
		}

		if h, ok := f.(*handle); ok {
			h.truncate(size)
		} else {
			content, err := n.mount.provider.ReadFile(ctx, n.path)
			if err != nil {
				return n.errno("truncate", err)
			}
			if err := n.mount.provider.WriteFile(ctx, n.path, resize(content, size), adbfs.WriteOptions{Overwrite: true}); err != nil {
				return n.errno("truncate", err)
			}
		}
	}

	return n.Getattr(ctx, f, out)
}

func (n *node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	entry, err := n.mount.provider.Stat(ctx, n.child(name))
	if err != nil {
		return nil, Errno(err)
	}

	return n.newChild(ctx, name, entry, out), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.mount.provider.ListDirectory(ctx, n.path)
	if err != nil {
		return nil, n.errno("readdir", err)
	}

	list := make([]gofuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, gofuse.DirEntry{
			Name: entry.Name,
			Mode: mode(entry) & syscall.S_IFMT,
		})
	}

	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	writable := flags&syscall.O_ACCMODE != syscall.O_RDONLY
	if writable && n.mount.readOnly {
		return nil, 0, syscall.EROFS
	}

	h := &handle{node: n}
	if flags&syscall.O_TRUNC != 0 {
		h.dirty = true
		return h, 0, 0
	}

	content, err := n.mount.provider.ReadFile(ctx, n.path)
	if err != nil {
		return nil, 0, n.errno("open", err)
	}
	h.content = content

	return h, 0, 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	if n.mount.readOnly {
		return nil, nil, 0, syscall.EROFS
	}

	child := n.child(name)
	if err := n.mount.provider.WriteFile(ctx, child, nil, adbfs.WriteOptions{Create: true}); err != nil {
		return nil, nil, 0, n.errno("create", err)
	}

	entry := data.NewEntry(name, data.EntryTypeFile)
	inode := n.newChild(ctx, name, entry, out)

	return inode, &handle{node: inode.Operations().(*node)}, 0, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.mount.readOnly {
		return nil, syscall.EROFS
	}

	child := n.child(name)
	if err := n.mount.provider.CreateDirectory(ctx, child); err != nil {
		return nil, n.errno("mkdir", err)
	}

	entry, err := n.mount.provider.Stat(ctx, child)
	if err != nil {
		return nil, n.errno("mkdir", err)
	}

	return n.newChild(ctx, name, entry, out), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.remove(ctx, "unlink", name)
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.remove(ctx, "rmdir", name)
}

func (n *node) remove(ctx context.Context, op, name string) syscall.Errno {
	if n.mount.readOnly {
		return syscall.EROFS
	}

	if err := n.mount.provider.Delete(ctx, n.child(name)); err != nil {
		return n.errno(op, err)
	}

	return 0
}

func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if n.mount.readOnly {
		return syscall.EROFS
	}
	if flags&fs.RENAME_EXCHANGE != 0 {
		return syscall.ENOTSUP
	}

	parent, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}

	if err := n.mount.provider.Rename(ctx, n.child(name), parent.child(newName), adbfs.RenameOptions{}); err != nil {
		return n.errno("rename", err)
	}

	return 0
}

func (m *mountState) fill(attr *gofuse.Attr, entry data.Entry) {
	attr.Mode = mode(entry)
	if m.readOnly {
		attr.Mode &^= 0o222
	}
	attr.Size = entry.Size
	attr.Nlink = 1

	modTime := entry.ModTime()
	attr.SetTimes(&modTime, &modTime, &modTime)
}

func mode(entry data.Entry) uint32 {
	if entry.IsDir() {
		return syscall.S_IFDIR | 0o755
	}

	return syscall.S_IFREG | 0o644
}

func resize(content []byte, size uint64) []byte {
	if uint64(len(content)) >= size {
		return content[:size]
	}

	return append(content, make([]byte, size-uint64(len(content)))...)
}
