package data

import (
	"path"
	"strings"
)

// VirtualPath is a resolved virtual path, split into the device it addresses
// and the path meaningful to that device's own filesystem.
type VirtualPath struct {
	// DeviceID is empty only for the virtual root.
	DeviceID string `json:"device_id"`

	// RemotePath is always absolute within the device's filesystem.
	RemotePath string `json:"remote_path"`
}

// IsRoot returns true if this path addresses the synthetic device listing.
func (vp VirtualPath) IsRoot() bool {
	return vp.DeviceID == ""
}

// Name returns the last segment of the virtual path.
// For a device root this is the device identifier itself.
func (vp VirtualPath) Name() string {
	if vp.IsRoot() {
		return ""
	}

	if vp.RemotePath == "/" || vp.RemotePath == "" {
		return vp.DeviceID
	}

	return path.Base(vp.RemotePath)
}

// String returns the virtual representation "/<device>/<remote>".
func (vp VirtualPath) String() string {
	if vp.IsRoot() {
		return "/"
	}

	return "/" + vp.DeviceID + ToAbsolutePath(vp.RemotePath)
}

// ToAbsolutePath ensures the path always starts with a leading slash.
// An empty path is the root "/".
func ToAbsolutePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}

	return p
}

// JoinRemote joins a remote directory and a child name without cleaning
// away segments the remote side may treat literally.
func JoinRemote(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}

	return strings.TrimSuffix(dir, "/") + "/" + name
}
