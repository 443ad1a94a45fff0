package data

import (
	"encoding/json"
	"time"
)

// EntryType identifies the kind of a directory entry.
type EntryType int

const (
	EntryTypeFile      EntryType = iota // Regular file
	EntryTypeDirectory                  // Directory (and everything that is not a regular file)
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry is the filesystem representation of a remote stat or list result.
// It is produced fresh on every call and never cached.
type Entry struct {
	Name string    `json:"name"`
	Type EntryType `json:"type"`

	// Size in bytes (files only, 0 for directories)
	Size uint64 `json:"size"`

	// Last modification time in milliseconds since the unix epoch
	ModifyTime int64 `json:"modify_time"`
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(name string, t EntryType) Entry {
	return Entry{
		Name:       name,
		Type:       t,
		ModifyTime: time.Now().UnixMilli(),
	}
}

// NewDirectory creates a directory entry stamped with the current time.
func NewDirectory(name string) Entry {
	return NewEntry(name, EntryTypeDirectory)
}

// IsDir returns true if this entry is a directory.
func (e Entry) IsDir() bool {
	return e.Type == EntryTypeDirectory
}

// IsFile returns true if this entry is a regular file.
func (e Entry) IsFile() bool {
	return e.Type == EntryTypeFile
}

// ModTime returns the modification time as time.Time.
func (e Entry) ModTime() time.Time {
	return time.UnixMilli(e.ModifyTime)
}

// Marshal provides JSON serialization for Entry.
func (e Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
