// Package translate converts remote metadata into directory entries.
package translate

import (
	"io/fs"
	"time"

	"github.com/mwantia/adbfs/data"
)

// Translator maps the metadata shape of a transport into data.Entry.
type Translator interface {
	Translate(info fs.FileInfo) data.Entry
}

// FileMode is the default Translator for every fs.FileInfo based transport.
// It is a file iff the mode reports a regular file; everything else,
// including symlinks, is presented as a directory.
type FileMode struct {
	// Now returns the fallback modification time; defaults to time.Now.
	Now func() time.Time
}

func (t FileMode) Translate(info fs.FileInfo) data.Entry {
	entry := data.Entry{
		Name: info.Name(),
		Type: data.EntryTypeDirectory,
	}

	if info.Mode().IsRegular() {
		entry.Type = data.EntryTypeFile
		if size := info.Size(); size > 0 {
			entry.Size = uint64(size)
		}
	}

	modTime := info.ModTime()
	if modTime.IsZero() {
		modTime = t.now()
	}
	entry.ModifyTime = modTime.UnixMilli()

	return entry
}

// TranslateAll maps a listing in order.
func TranslateAll(t Translator, infos []fs.FileInfo) []data.Entry {
	entries := make([]data.Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, t.Translate(info))
	}

	return entries
}

func (t FileMode) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}

	return time.Now()
}
