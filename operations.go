package adbfs

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/data/errors"
	"github.com/mwantia/adbfs/data/translate"
	"github.com/mwantia/adbfs/device/shell"
	"github.com/mwantia/adbfs/metrics"
)

// RootName is the name the synthetic root directory stats as.
const RootName = "(devices)"

const defaultFileMode = 0o644

// Stat returns the entry of a single virtual path.
func (fs *FileSystem) Stat(ctx context.Context, path string) (entry data.Entry, err error) {
	op := fs.begin("stat", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return data.Entry{}, err
	}
	op.trace(vp)

	op.step("stat")
	return fs.stat(ctx, vp)
}

// ListDirectory lists the attached devices for the root and the remote
// directory for every other path.
func (fs *FileSystem) ListDirectory(ctx context.Context, path string) (entries []data.Entry, err error) {
	op := fs.begin("readDirectory", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	op.trace(vp)

	if vp.IsRoot() {
		op.step("devices")
		devices, err := fs.registry.ListAttached(ctx)
		if err != nil {
			return nil, err
		}

		entries = make([]data.Entry, 0, len(devices))
		for _, dev := range devices {
			entries = append(entries, data.NewDirectory(dev.ID))
		}
		return entries, nil
	}

	if fs.resolver.IsReserved(vp) {
		return nil, errors.ReservedName("readDirectory", vp.String())
	}

	op.step("list")
	infos, err := fs.transport.Device(vp.DeviceID).List(ctx, vp.RemotePath)
	if err != nil {
		return nil, normalize(err, "readDirectory", vp.String())
	}

	entries = translate.TranslateAll(fs.options.Translator, infos)
	if fs.restrictListing(vp) {
		for _, entry := range entries {
			if entry.IsDir() && entry.Name == fs.options.Subtree {
				return []data.Entry{data.NewDirectory(entry.Name)}, nil
			}
		}
	}

	return entries, nil
}

// ReadFile buffers the full content of a remote file. Partial content is
// discarded if the stream fails before completion.
func (fs *FileSystem) ReadFile(ctx context.Context, path string) (content []byte, err error) {
	op := fs.begin("readFile", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	op.trace(vp)

	if err := fs.check("readFile", vp); err != nil {
		return nil, err
	}
	if vp.IsRoot() {
		return nil, errors.IsDirectory("readFile", vp.String())
	}

	op.step("pull")
	rc, err := fs.transport.Device(vp.DeviceID).Pull(ctx, vp.RemotePath)
	if err != nil {
		return nil, normalize(err, "readFile", vp.String())
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, normalize(err, "readFile", vp.String())
	}

	metrics.RecordPull(buf.Len())
	return buf.Bytes(), nil
}

// WriteFile pushes content to the remote path. The create and overwrite
// options are not enforced: the file is always created or replaced.
func (fs *FileSystem) WriteFile(ctx context.Context, path string, content []byte, opts WriteOptions) (err error) {
	op := fs.begin("writeFile", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return err
	}
	op.trace(vp)

	if err := fs.mutable("writeFile", vp); err != nil {
		return err
	}

	op.step("push")
	if err := fs.transport.Device(vp.DeviceID).Push(ctx, bytes.NewReader(content), vp.RemotePath, defaultFileMode); err != nil {
		return transport(err, "writeFile", vp.String())
	}

	metrics.RecordPush(len(content))
	return nil
}

// Rename moves oldPath to newPath on the same device. The destination must not exist.
func (fs *FileSystem) Rename(ctx context.Context, oldPath, newPath string, opts RenameOptions) (err error) {
	op := fs.begin("rename", oldPath+" -> "+newPath)
	defer func() { err = op.finish(err) }()

	from, err := fs.resolver.Resolve(oldPath)
	if err != nil {
		return err
	}
	to, err := fs.resolver.Resolve(newPath)
	if err != nil {
		return err
	}
	op.trace(from)
	op.trace(to)

	if from.DeviceID != to.DeviceID && !from.IsRoot() && !to.IsRoot() {
		return errors.CrossDevice("rename", from.String(), to.String())
	}
	if err := fs.mutable("rename", from); err != nil {
		return err
	}
	if err := fs.mutable("rename", to); err != nil {
		return err
	}

	op.step("stat")
	if _, err := fs.stat(ctx, from); err != nil {
		return err
	}

	switch _, err := fs.stat(ctx, to); {
	case err == nil:
		return errors.NameConflict("rename", to.String())
	case !errors.Is(err, data.ErrNotExist):
		return err
	}

	op.step("shell")
	if err := fs.command(ctx, to.DeviceID, shell.Move(from.RemotePath, to.RemotePath), "rename", from.String()); err != nil {
		return err
	}

	op.step("settle")
	fs.settle(ctx, func(ctx context.Context) bool {
		if _, err := fs.stat(ctx, to); err != nil {
			return false
		}
		_, err := fs.stat(ctx, from)
		return errors.Is(err, data.ErrNotExist)
	})

	return nil
}

// Delete removes a file or an empty directory. A non-empty directory is never touched.
func (fs *FileSystem) Delete(ctx context.Context, path string) (err error) {
	op := fs.begin("delete", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return err
	}
	op.trace(vp)

	if err := fs.mutable("delete", vp); err != nil {
		return err
	}

	op.step("stat")
	entry, err := fs.stat(ctx, vp)
	if err != nil {
		return err
	}

	op.step("shell")
	if entry.IsDir() {
		output, err := fs.shell(ctx, vp.DeviceID, shell.RemoveDir(vp.RemotePath))
		if err != nil {
			return transport(err, "delete", vp.String())
		}
		if shell.IsNotEmpty(output) {
			return errors.NotEmpty(output, "delete", vp.String())
		}
		if strings.TrimSpace(output) != "" {
			return errors.TransportOutput(output, "delete", vp.String())
		}
	} else {
		if err := fs.command(ctx, vp.DeviceID, shell.Remove(vp.RemotePath), "delete", vp.String()); err != nil {
			return err
		}
	}

	op.step("settle")
	fs.settle(ctx, func(ctx context.Context) bool {
		_, err := fs.stat(ctx, vp)
		return errors.Is(err, data.ErrNotExist)
	})

	return nil
}

// CreateDirectory creates a single directory. An existing directory is
// reported as a transport failure like any other remote error.
func (fs *FileSystem) CreateDirectory(ctx context.Context, path string) (err error) {
	op := fs.begin("createDirectory", path)
	defer func() { err = op.finish(err) }()

	vp, err := fs.resolver.Resolve(path)
	if err != nil {
		return err
	}
	op.trace(vp)

	if err := fs.mutable("createDirectory", vp); err != nil {
		return err
	}

	op.step("shell")
	if err := fs.command(ctx, vp.DeviceID, shell.MakeDir(vp.RemotePath), "createDirectory", vp.String()); err != nil {
		return err
	}

	op.step("settle")
	fs.settle(ctx, func(ctx context.Context) bool {
		entry, err := fs.stat(ctx, vp)
		return err == nil && entry.IsDir()
	})

	return nil
}

// Watch registers no remote watch. Changes are only published for the root
// through Changes.
func (fs *FileSystem) Watch(path string, opts WatchOptions) Disposable {
	fs.logger.Debug("watch uri %s ignored", path)
	return DisposeFunc(func() {})
}

func (fs *FileSystem) stat(ctx context.Context, vp data.VirtualPath) (data.Entry, error) {
	if vp.IsRoot() {
		return data.NewDirectory(RootName), nil
	}
	if fs.resolver.IsReserved(vp) {
		return data.Entry{}, errors.ReservedName("stat", vp.String())
	}

	info, err := fs.transport.Device(vp.DeviceID).Stat(ctx, vp.RemotePath)
	if err != nil {
		return data.Entry{}, normalize(err, "stat", vp.String())
	}

	entry := fs.options.Translator.Translate(info)
	entry.Name = fs.resolver.Name(vp)

	return entry, nil
}

// check rejects reserved device identifiers before any remote call.
func (fs *FileSystem) check(op string, vp data.VirtualPath) error {
	if fs.resolver.IsReserved(vp) {
		return errors.ReservedName(op, vp.String())
	}

	return nil
}

// mutable rejects mutations of the synthetic root and of device roots.
func (fs *FileSystem) mutable(op string, vp data.VirtualPath) error {
	if err := fs.check(op, vp); err != nil {
		return err
	}
	if vp.IsRoot() || fs.resolver.IsDeviceRoot(vp) {
		return errors.ReadOnly(op, vp.String())
	}

	return nil
}

func (fs *FileSystem) restrictListing(vp data.VirtualPath) bool {
	return fs.restricted.Load() && fs.options.RootMapping == RootDevice && fs.resolver.IsDeviceRoot(vp)
}

// command runs a mutating shell command. These commands print nothing on
// success, so any output is reported as failure.
func (fs *FileSystem) command(ctx context.Context, deviceID, cmd, op, path string) error {
	output, err := fs.shell(ctx, deviceID, cmd)
	if err != nil {
		return transport(err, op, path)
	}
	if strings.TrimSpace(output) != "" {
		return errors.TransportOutput(output, op, path)
	}

	return nil
}

func (fs *FileSystem) shell(ctx context.Context, deviceID, cmd string) (string, error) {
	fs.logger.Debug("shell %s: %s", deviceID, cmd)

	rc, err := fs.transport.Device(deviceID).Shell(ctx, cmd)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	output, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return string(output), nil
}
