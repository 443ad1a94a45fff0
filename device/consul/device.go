package consul

import (
	"context"
	"io"
	"io/fs"
)

// Device resolves its adb server on every call, so a device moving between
// farm hosts is followed transparently.
type Device struct {
	transport *Transport
	id        string
}

func (d *Device) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	client, err := d.transport.resolve(ctx, d.id)
	if err != nil {
		return nil, err
	}

	return client.Stat(ctx, path)
}

func (d *Device) List(ctx context.Context, path string) ([]fs.FileInfo, error) {
	client, err := d.transport.resolve(ctx, d.id)
	if err != nil {
		return nil, err
	}

	return client.List(ctx, path)
}

func (d *Device) Pull(ctx context.Context, path string) (io.ReadCloser, error) {
	client, err := d.transport.resolve(ctx, d.id)
	if err != nil {
		return nil, err
	}

	return client.Pull(ctx, path)
}

func (d *Device) Push(ctx context.Context, r io.Reader, path string, mode fs.FileMode) error {
	client, err := d.transport.resolve(ctx, d.id)
	if err != nil {
		return err
	}

	return client.Push(ctx, r, path, mode)
}

func (d *Device) Shell(ctx context.Context, command string) (io.ReadCloser, error) {
	client, err := d.transport.resolve(ctx, d.id)
	if err != nil {
		return nil, err
	}

	return client.Shell(ctx, command)
}
