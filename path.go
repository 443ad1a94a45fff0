package adbfs

import (
	"slices"
	"strings"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/data/errors"
)

// Scheme is the URI scheme the bridge is registered under.
const Scheme = "adbfs"

// Resolver splits virtual paths into device identifiers and remote paths.
type Resolver struct {
	mapping  RootMapping
	subtree  string
	reserved []string
}

func NewResolver(mapping RootMapping, subtree string, reserved []string) *Resolver {
	return &Resolver{
		mapping:  mapping,
		subtree:  subtree,
		reserved: reserved,
	}
}

// Resolve rejects ".." segments, so a resolved path never leaves its device
// root. Reserved device identifiers are resolved like any other and must be
// rejected by the caller through IsReserved.
func (r *Resolver) Resolve(p string) (data.VirtualPath, error) {
	trimmed := strings.TrimPrefix(p, Scheme+":")

	segments := make([]string, 0, 8)
	for segment := range strings.SplitSeq(trimmed, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			return data.VirtualPath{}, errors.InvalidPath(nil, p)
		}
		segments = append(segments, segment)
	}

	if len(segments) == 0 {
		return data.VirtualPath{}, nil
	}

	vp := data.VirtualPath{
		DeviceID:   segments[0],
		RemotePath: r.DeviceRoot(),
	}
	if len(segments) > 1 {
		vp.RemotePath = data.JoinRemote(vp.RemotePath, strings.Join(segments[1:], "/"))
	}

	return vp, nil
}

// DeviceRoot returns the remote path a bare device identifier maps to.
func (r *Resolver) DeviceRoot() string {
	if r.mapping == RootSubtree {
		return "/" + r.subtree
	}

	return "/"
}

func (r *Resolver) IsDeviceRoot(vp data.VirtualPath) bool {
	return !vp.IsRoot() && vp.RemotePath == r.DeviceRoot()
}

// Name returns the name an entry stats as. Device roots are named by their
// identifier under every root mapping.
func (r *Resolver) Name(vp data.VirtualPath) string {
	if r.IsDeviceRoot(vp) {
		return vp.DeviceID
	}

	return vp.Name()
}

func (r *Resolver) IsReserved(vp data.VirtualPath) bool {
	return slices.Contains(r.reserved, vp.DeviceID)
}

// URI formats a virtual path with the bridge scheme.
func URI(vp data.VirtualPath) string {
	return Scheme + ":" + vp.String()
}
