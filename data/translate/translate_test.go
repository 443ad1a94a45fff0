package translate

import (
	"io/fs"
	"testing"
	"time"

	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
)

func TestFileModeTranslate(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	translator := FileMode{Now: func() time.Time { return fixed }}
	mtime := time.Unix(1600000000, 0)

	tests := []struct {
		name     string
		info     fs.FileInfo
		expected data.Entry
	}{
		{
			name:     "regular file",
			info:     device.NewFileInfo("a.txt", 0o100644, 5, mtime.Unix()),
			expected: data.Entry{Name: "a.txt", Type: data.EntryTypeFile, Size: 5, ModifyTime: mtime.UnixMilli()},
		},
		{
			name:     "directory drops size",
			info:     device.NewFileInfo("d", 0o040755, 4096, mtime.Unix()),
			expected: data.Entry{Name: "d", Type: data.EntryTypeDirectory, ModifyTime: mtime.UnixMilli()},
		},
		{
			name:     "symlink is not a file",
			info:     device.NewFileInfo("sdcard", 0o120777, 21, mtime.Unix()),
			expected: data.Entry{Name: "sdcard", Type: data.EntryTypeDirectory, ModifyTime: mtime.UnixMilli()},
		},
		{
			name:     "missing mtime falls back to now",
			info:     device.NewFileInfo("b.txt", 0o100600, 1, 0),
			expected: data.Entry{Name: "b.txt", Type: data.EntryTypeFile, Size: 1, ModifyTime: fixed.UnixMilli()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			entry := translator.Translate(tt.info)
			if entry != tt.expected {
				tst.Errorf("Translate() = %+v, expected %+v", entry, tt.expected)
			}
		})
	}
}
