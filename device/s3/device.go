package s3

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/shell"
)

const directoryContentType = "application/x-directory"

type Device struct {
	client *minio.Client
	bucket string
}

var (
	_ device.Client = (*Device)(nil)
	_ shell.FS      = (*Device)(nil)
)

func (d *Device) Stat(ctx context.Context, p string) (fs.FileInfo, error) {
	key := objectKey(p)
	if key == "" {
		return directory("/", time.Time{}), nil
	}

	info, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return file(info), nil
	}
	if !notFound(err) {
		return nil, err
	}

	marker, err := d.client.StatObject(ctx, d.bucket, key+"/", minio.StatObjectOptions{})
	if err == nil {
		return directory(key, marker.LastModified), nil
	}
	if !notFound(err) {
		return nil, err
	}

	// Directories without marker exist implicitly through their children
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:  key + "/",
		MaxKeys: 1,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		return directory(key, object.LastModified), nil
	}

	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (d *Device) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	info, err := d.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "list", Path: p, Err: shell.ErrNotDirectory}
	}

	prefix := dirPrefix(p)
	result := make([]fs.FileInfo, 0)

	for object := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, object.Err
		}
		if object.Key == prefix {
			continue
		}

		if strings.HasSuffix(object.Key, "/") {
			result = append(result, directory(strings.TrimSuffix(object.Key, "/"), object.LastModified))
			continue
		}
		result = append(result, file(object))
	}

	return result, nil
}

func (d *Device) Pull(ctx context.Context, p string) (io.ReadCloser, error) {
	info, err := d.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "pull", Path: p, Err: shell.ErrIsDirectory}
	}

	return d.client.GetObject(ctx, d.bucket, objectKey(p), minio.GetObjectOptions{})
}

func (d *Device) Push(ctx context.Context, r io.Reader, p string, mode fs.FileMode) error {
	if err := d.parentDir(ctx, p); err != nil {
		return &fs.PathError{Op: "push", Path: p, Err: err}
	}

	// A known size keeps small files on a single PUT; an unknown size
	// always starts a multipart upload.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}

	_, err := d.client.PutObject(ctx, d.bucket, objectKey(p), bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{})
	return err
}

func (d *Device) Shell(ctx context.Context, command string) (io.ReadCloser, error) {
	return shell.Output(ctx, d, command), nil
}

func (d *Device) Rename(ctx context.Context, from, to string) error {
	source, err := d.Stat(ctx, from)
	if err != nil {
		return err
	}
	if err := d.parentDir(ctx, to); err != nil {
		return err
	}

	if existing, err := d.Stat(ctx, to); err == nil {
		switch {
		case existing.IsDir() && !source.IsDir():
			return shell.ErrIsDirectory
		case !existing.IsDir() && source.IsDir():
			return shell.ErrNotDirectory
		case existing.IsDir():
			if empty, err := d.empty(ctx, to); err != nil || !empty {
				if err != nil {
					return err
				}
				return shell.ErrNotEmpty
			}
		}
	}

	if !source.IsDir() {
		return d.move(ctx, objectKey(from), objectKey(to))
	}

	src, dst := dirPrefix(from), dirPrefix(to)

	var keys []string
	for object := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    src,
		Recursive: true,
	}) {
		if object.Err != nil {
			return object.Err
		}
		keys = append(keys, object.Key)
	}

	for _, key := range keys {
		if err := d.move(ctx, key, dst+strings.TrimPrefix(key, src)); err != nil {
			return err
		}
	}

	return nil
}

func (d *Device) Remove(ctx context.Context, p string) error {
	info, err := d.Stat(ctx, p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return shell.ErrIsDirectory
	}

	return d.client.RemoveObject(ctx, d.bucket, objectKey(p), minio.RemoveObjectOptions{})
}

func (d *Device) RemoveDir(ctx context.Context, p string) error {
	info, err := d.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return shell.ErrNotDirectory
	}
	if objectKey(p) == "" {
		return fs.ErrPermission
	}

	empty, err := d.empty(ctx, p)
	if err != nil {
		return err
	}
	if !empty {
		return shell.ErrNotEmpty
	}

	return d.client.RemoveObject(ctx, d.bucket, dirPrefix(p), minio.RemoveObjectOptions{})
}

func (d *Device) MakeDir(ctx context.Context, p string) error {
	if _, err := d.Stat(ctx, p); err == nil {
		return fs.ErrExist
	}
	if err := d.parentDir(ctx, p); err != nil {
		return err
	}

	_, err := d.client.PutObject(ctx, d.bucket, dirPrefix(p), bytes.NewReader(nil), 0, minio.PutObjectOptions{
		ContentType: directoryContentType,
	})
	return err
}

func (d *Device) move(ctx context.Context, src, dst string) error {
	if _, err := d.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: d.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: d.bucket, Object: src},
	); err != nil {
		return err
	}

	return d.client.RemoveObject(ctx, d.bucket, src, minio.RemoveObjectOptions{})
}

func (d *Device) parentDir(ctx context.Context, p string) error {
	parent, err := d.Stat(ctx, path.Dir(path.Clean("/"+p)))
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return shell.ErrNotDirectory
	}

	return nil
}

func (d *Device) empty(ctx context.Context, p string) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := dirPrefix(p)
	for object := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix: prefix,
	}) {
		if object.Err != nil {
			return false, object.Err
		}
		if object.Key != prefix {
			return false, nil
		}
	}

	return true, nil
}

// objectKey maps an absolute device path to its object key; the root is "".
func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirPrefix returns the listing prefix of a directory.
func dirPrefix(p string) string {
	key := objectKey(p)
	if key == "" {
		return ""
	}

	return key + "/"
}

func notFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func file(info minio.ObjectInfo) fs.FileInfo {
	return &device.FileInfo{
		FileName:    path.Base(info.Key),
		FileSize:    info.Size,
		FileMode:    0o644,
		FileModTime: info.LastModified,
	}
}

func directory(key string, modTime time.Time) fs.FileInfo {
	return &device.FileInfo{
		FileName:    path.Base("/" + key),
		FileMode:    fs.ModeDir | 0o755,
		FileModTime: modTime,
	}
}
