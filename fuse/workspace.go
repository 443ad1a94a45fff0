package fuse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwantia/adbfs"
)

// AddWorkspaceRoot links name inside the workspace directory to the
// mountpoint location uri refers to. An existing link with the same
// target is kept.
func (h *Host) AddWorkspaceRoot(ctx context.Context, uri, name string) error {
	if h.options.WorkspaceDir == "" {
		return fmt.Errorf("workspace directory is not configured")
	}
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return fmt.Errorf("invalid workspace name '%s'", name)
	}

	target := h.Target(uri)
	link := filepath.Join(h.options.WorkspaceDir, name)

	if err := os.MkdirAll(h.options.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("creating workspace directory %s: %w", h.options.WorkspaceDir, err)
	}

	if existing, err := os.Readlink(link); err == nil {
		if existing == target {
			return nil
		}
		return fmt.Errorf("workspace root '%s' already links to %s", name, existing)
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("creating workspace root %s: %w", link, err)
	}

	h.logger.Info("Added workspace root '%s' -> %s", name, target)
	return nil
}

// Target returns the mountpoint location of a virtual uri.
func (h *Host) Target(uri string) string {
	path := strings.TrimPrefix(uri, adbfs.Scheme+":")
	path = strings.Trim(path, "/")
	if path == "" {
		return h.options.Mountpoint
	}

	return filepath.Join(h.options.Mountpoint, filepath.FromSlash(path))
}
