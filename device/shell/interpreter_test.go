package shell_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/mwantia/adbfs/device/memory"
	"github.com/mwantia/adbfs/device/shell"
)

func TestInterpreterCommands(t *testing.T) {
	dev := memory.NewDevice("emu1")
	dev.WriteFile("/sdcard/a.txt", []byte("a"))
	dev.MkdirAll("/sdcard/full/inner")

	tests := []struct {
		name    string
		command string
		output  string
	}{
		{"mkdir", shell.MakeDir("/sdcard/d"), ""},
		{"mkdir exists", shell.MakeDir("/sdcard/d"), "mkdir: '/sdcard/d': File exists\n"},
		{"mkdir parents", "mkdir -p /sdcard/x/y/z", ""},
		{"move", shell.Move("/sdcard/a.txt", "/sdcard/b.txt"), ""},
		{"move into dir", shell.Move("/sdcard/b.txt", "/sdcard/d"), ""},
		{"move missing", shell.Move("/sdcard/nope", "/sdcard/x"), "mv: '/sdcard/nope': No such file or directory\n"},
		{"rm directory", shell.Remove("/sdcard/d"), "rm: '/sdcard/d': Is a directory\n"},
		{"rm file", shell.Remove("/sdcard/d/b.txt"), ""},
		{"rm force missing", "rm -f /sdcard/nope", ""},
		{"rmdir", shell.RemoveDir("/sdcard/d"), ""},
		{"rmdir full", shell.RemoveDir("/sdcard/full"), "rmdir: '/sdcard/full': Directory not empty\n"},
		{"unknown", "reboot", "sh: reboot: inaccessible or not found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			output := shell.Run(context.Background(), dev, tt.command)
			if output != tt.output {
				tst.Errorf("Run(%q) = %q, expected %q", tt.command, output, tt.output)
			}
		})
	}

	if _, err := dev.Stat(t.Context(), "/sdcard/x/y/z"); err != nil {
		t.Errorf("Expected nested directory: %v", err)
	}
	if _, err := dev.Stat(t.Context(), "/sdcard/d"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected removed directory, got %v", err)
	}
	if !shell.IsNotEmpty(shell.Run(t.Context(), dev, shell.RemoveDir("/sdcard/full"))) {
		t.Errorf("Expected not-empty detection on interpreter output")
	}
}

func TestInterpreterQuotedNames(t *testing.T) {
	dev := memory.NewDevice("emu1")
	name := "/sdcard/it's a \"file\""
	dev.WriteFile(name, []byte("x"))

	if out := shell.Run(t.Context(), dev, shell.Move(name, "/sdcard/plain")); out != "" {
		t.Fatalf("Unexpected output: %q", out)
	}
	if _, err := dev.Stat(t.Context(), "/sdcard/plain"); err != nil {
		t.Errorf("Expected renamed file: %v", err)
	}
	if out := shell.Run(t.Context(), dev, "echo hello   world"); strings.TrimSpace(out) != "hello world" {
		t.Errorf("Unexpected echo output: %q", out)
	}
}
