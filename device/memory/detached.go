package memory

import (
	"context"
	"io"
	"io/fs"
)

// detached is returned for devices that are not (or no longer) attached.
type detached struct {
	id string
}

func (d *detached) Stat(context.Context, string) (fs.FileInfo, error) {
	return nil, notFound(d.id)
}

func (d *detached) List(context.Context, string) ([]fs.FileInfo, error) {
	return nil, notFound(d.id)
}

func (d *detached) Pull(context.Context, string) (io.ReadCloser, error) {
	return nil, notFound(d.id)
}

func (d *detached) Push(context.Context, io.Reader, string, fs.FileMode) error {
	return notFound(d.id)
}

func (d *detached) Shell(context.Context, string) (io.ReadCloser, error) {
	return nil, notFound(d.id)
}
