package database

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/mwantia/adbfs/data/errors"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/shell"
)

type Device struct {
	transport *Transport
	id        string
}

type entry struct {
	path    string
	mode    uint32
	size    int64
	modTime int64
}

func (e *entry) info() fs.FileInfo {
	return &device.FileInfo{
		FileName:    path.Base(e.path),
		FileSize:    e.size,
		FileMode:    device.FileModeFromUnix(e.mode),
		FileModTime: time.UnixMilli(e.modTime),
	}
}

func (e *entry) isDir() bool {
	return e.mode&device.ModeTypeMask == device.ModeDirectory
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *Device) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	if err := d.attached(ctx); err != nil {
		return nil, err
	}

	e, err := d.lookup(ctx, d.transport.db, clean(p))
	if err != nil {
		return nil, pathError("stat", p, err)
	}

	return e.info(), nil
}

func (d *Device) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	if err := d.attached(ctx); err != nil {
		return nil, err
	}

	key := clean(p)
	e, err := d.lookup(ctx, d.transport.db, key)
	if err != nil {
		return nil, pathError("list", p, err)
	}
	if !e.isDir() {
		return nil, pathError("list", p, shell.ErrNotDirectory)
	}

	rows, err := d.transport.db.QueryContext(ctx, d.transport.dialect.rebind(
		`SELECT path, mode, size, modify_time FROM adbfs_entries WHERE device = ? AND parent = ? ORDER BY path`),
		d.id, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]fs.FileInfo, 0)
	for rows.Next() {
		var child entry
		if err := rows.Scan(&child.path, &child.mode, &child.size, &child.modTime); err != nil {
			return nil, err
		}
		result = append(result, child.info())
	}

	return result, rows.Err()
}

func (d *Device) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := d.attached(ctx); err != nil {
		return nil, err
	}

	var mode uint32
	var content []byte

	err := d.transport.db.QueryRowContext(ctx, d.transport.dialect.rebind(
		`SELECT mode, content FROM adbfs_entries WHERE device = ? AND path = ?`),
		d.id, clean(p)).Scan(&mode, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pathError("pull", p, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	if mode&device.ModeTypeMask == device.ModeDirectory {
		return nil, pathError("pull", p, shell.ErrIsDirectory)
	}

	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *Device) Push(ctx context.Context, r io.Reader, p string, mode fs.FileMode) error {
	if err := d.attached(ctx); err != nil {
		return err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	key := clean(p)
	db := d.transport.db

	if err := d.parentDir(ctx, db, key); err != nil {
		return pathError("push", p, err)
	}
	if e, err := d.lookup(ctx, db, key); err == nil && e.isDir() {
		return pathError("push", p, shell.ErrIsDirectory)
	}

	_, err = db.ExecContext(ctx, d.transport.dialect.rebind(
		`INSERT INTO adbfs_entries (device, path, parent, mode, size, modify_time, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (device, path) DO UPDATE SET
			mode = excluded.mode,
			size = excluded.size,
			modify_time = excluded.modify_time,
			content = excluded.content`),
		d.id, key, path.Dir(key), int64(device.ModeRegular|uint32(mode.Perm())),
		int64(len(content)), time.Now().UnixMilli(), content)

	return err
}

func (d *Device) Shell(ctx context.Context, command string) (io.ReadCloser, error) {
	if err := d.attached(ctx); err != nil {
		return nil, err
	}

	return shell.Output(ctx, d, command), nil
}

func (d *Device) Rename(ctx context.Context, from, to string) error {
	d.transport.mu.Lock()
	defer d.transport.mu.Unlock()

	src, dst := clean(from), clean(to)
	if src == "/" {
		return fs.ErrPermission
	}

	tx, err := d.transport.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	source, err := d.lookup(ctx, tx, src)
	if err != nil {
		return err
	}
	if err := d.parentDir(ctx, tx, dst); err != nil {
		return err
	}

	if existing, err := d.lookup(ctx, tx, dst); err == nil {
		switch {
		case existing.isDir() && !source.isDir():
			return shell.ErrIsDirectory
		case !existing.isDir() && source.isDir():
			return shell.ErrNotDirectory
		case existing.isDir():
			empty, err := d.empty(ctx, tx, dst)
			if err != nil {
				return err
			}
			if !empty {
				return shell.ErrNotEmpty
			}
		}

		if _, err := tx.ExecContext(ctx, d.transport.dialect.rebind(
			`DELETE FROM adbfs_entries WHERE device = ? AND path = ?`), d.id, dst); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// Collect the subtree first; updating while iterating is not portable
	prefix := src + "/"
	rows, err := tx.QueryContext(ctx, d.transport.dialect.rebind(
		`SELECT path FROM adbfs_entries WHERE device = ? AND (path = ? OR substr(path, 1, ?) = ?)`),
		d.id, src, len(prefix), prefix)
	if err != nil {
		return err
	}

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range paths {
		moved := dst + strings.TrimPrefix(p, src)
		if _, err := tx.ExecContext(ctx, d.transport.dialect.rebind(
			`UPDATE adbfs_entries SET path = ?, parent = ? WHERE device = ? AND path = ?`),
			moved, path.Dir(moved), d.id, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *Device) Remove(ctx context.Context, p string) error {
	key := clean(p)
	e, err := d.lookup(ctx, d.transport.db, key)
	if err != nil {
		return err
	}
	if e.isDir() {
		return shell.ErrIsDirectory
	}

	return d.delete(ctx, key)
}

func (d *Device) RemoveDir(ctx context.Context, p string) error {
	key := clean(p)
	e, err := d.lookup(ctx, d.transport.db, key)
	if err != nil {
		return err
	}
	if !e.isDir() {
		return shell.ErrNotDirectory
	}
	if key == "/" {
		return fs.ErrPermission
	}

	empty, err := d.empty(ctx, d.transport.db, key)
	if err != nil {
		return err
	}
	if !empty {
		return shell.ErrNotEmpty
	}

	return d.delete(ctx, key)
}

func (d *Device) MakeDir(ctx context.Context, p string) error {
	key := clean(p)
	db := d.transport.db

	if _, err := d.lookup(ctx, db, key); err == nil {
		return fs.ErrExist
	}
	if err := d.parentDir(ctx, db, key); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, d.transport.dialect.rebind(
		`INSERT INTO adbfs_entries (device, path, parent, mode, size, modify_time) VALUES (?, ?, ?, ?, 0, ?)`),
		d.id, key, path.Dir(key), int64(device.ModeDirectory|0o755), time.Now().UnixMilli())

	return err
}

func (d *Device) attached(ctx context.Context) error {
	var state string
	err := d.transport.db.QueryRowContext(ctx, d.transport.dialect.rebind(
		`SELECT state FROM adbfs_devices WHERE id = ?`), d.id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: '%s'", ErrDeviceNotFound, d.id)
	}

	return err
}

// lookup returns fs.ErrNotExist for missing entries.
func (d *Device) lookup(ctx context.Context, q querier, key string) (*entry, error) {
	e := &entry{path: key}
	err := q.QueryRowContext(ctx, d.transport.dialect.rebind(
		`SELECT mode, size, modify_time FROM adbfs_entries WHERE device = ? AND path = ?`),
		d.id, key).Scan(&e.mode, &e.size, &e.modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fs.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return e, nil
}

func (d *Device) parentDir(ctx context.Context, q querier, key string) error {
	parent, err := d.lookup(ctx, q, path.Dir(key))
	if err != nil {
		return err
	}
	if !parent.isDir() {
		return shell.ErrNotDirectory
	}

	return nil
}

func (d *Device) empty(ctx context.Context, q querier, key string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, d.transport.dialect.rebind(
		`SELECT COUNT(*) FROM adbfs_entries WHERE device = ? AND parent = ?`),
		d.id, key).Scan(&count)

	return count == 0, err
}

func (d *Device) delete(ctx context.Context, key string) error {
	_, err := d.transport.db.ExecContext(ctx, d.transport.dialect.rebind(
		`DELETE FROM adbfs_entries WHERE device = ? AND path = ?`), d.id, key)

	return err
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func pathError(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}
