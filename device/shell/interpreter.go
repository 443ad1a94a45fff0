package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

var (
	ErrNotEmpty     = errors.New("Directory not empty")
	ErrNotDirectory = errors.New("Not a directory")
	ErrIsDirectory  = errors.New("Is a directory")
)

// FS is the mutation surface an emulated device exposes to the interpreter.
type FS interface {
	Stat(ctx context.Context, path string) (fs.FileInfo, error)
	// Rename moves a file or directory, replacing a destination file.
	Rename(ctx context.Context, from, to string) error
	// Remove deletes a non-directory entry.
	Remove(ctx context.Context, path string) error
	// RemoveDir deletes an empty directory.
	RemoveDir(ctx context.Context, path string) error
	// MakeDir creates a directory whose parent already exists.
	MakeDir(ctx context.Context, path string) error
}

type command func(ctx context.Context, fsys FS, flags string, args []string, out *strings.Builder)

var commands = map[string]command{
	"mv":    runMove,
	"rm":    runRemove,
	"rmdir": runRemoveDir,
	"mkdir": runMakeDir,
	"true":  func(context.Context, FS, string, []string, *strings.Builder) {},
	"echo": func(_ context.Context, _ FS, _ string, args []string, out *strings.Builder) {
		out.WriteString(strings.Join(args, " ") + "\n")
	},
}

// Run interprets a single toybox-style command against fsys and returns
// the combined output. Successful mutations print nothing.
func Run(ctx context.Context, fsys FS, line string) string {
	words, err := Split(line)
	if err != nil {
		return fmt.Sprintf("sh: %v\n", err)
	}
	if len(words) == 0 {
		return ""
	}

	name := words[0]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Sprintf("sh: %s: inaccessible or not found\n", name)
	}

	flags, args := parseFlags(words[1:])

	var out strings.Builder
	cmd(ctx, fsys, flags, args, &out)

	return out.String()
}

// Output wraps Run into the stream shape returned by device shells.
func Output(ctx context.Context, fsys FS, line string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(Run(ctx, fsys, line)))
}

func parseFlags(words []string) (string, []string) {
	var flags strings.Builder
	for i, w := range words {
		if w == "--" {
			return flags.String(), words[i+1:]
		}
		if len(w) < 2 || w[0] != '-' {
			return flags.String(), words[i:]
		}
		flags.WriteString(w[1:])
	}

	return flags.String(), nil
}

func message(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "No such file or directory"
	case errors.Is(err, fs.ErrExist):
		return "File exists"
	case errors.Is(err, fs.ErrPermission):
		return "Permission denied"
	case errors.Is(err, fs.ErrInvalid):
		return "Invalid argument"
	case errors.Is(err, ErrNotEmpty):
		return ErrNotEmpty.Error()
	case errors.Is(err, ErrNotDirectory):
		return ErrNotDirectory.Error()
	case errors.Is(err, ErrIsDirectory):
		return ErrIsDirectory.Error()
	default:
		return err.Error()
	}
}

func report(out *strings.Builder, name, target string, err error) {
	fmt.Fprintf(out, "%s: '%s': %s\n", name, target, message(err))
}

func runMove(ctx context.Context, fsys FS, _ string, args []string, out *strings.Builder) {
	if len(args) < 2 {
		out.WriteString("mv: needs 2 arguments\n")
		return
	}

	dst := args[len(args)-1]
	sources := args[:len(args)-1]

	info, err := fsys.Stat(ctx, dst)
	dstIsDir := err == nil && info.IsDir()
	if len(sources) > 1 && !dstIsDir {
		report(out, "mv", dst, ErrNotDirectory)
		return
	}

	for _, src := range sources {
		target := dst
		if dstIsDir {
			target = path.Join(dst, path.Base(src))
		}
		if target == src {
			continue
		}
		if strings.HasPrefix(target, strings.TrimSuffix(src, "/")+"/") {
			report(out, "mv", src, fs.ErrInvalid)
			continue
		}

		if err := fsys.Rename(ctx, src, target); err != nil {
			report(out, "mv", src, err)
		}
	}
}

func runRemove(ctx context.Context, fsys FS, flags string, args []string, out *strings.Builder) {
	force := strings.Contains(flags, "f")
	if len(args) == 0 && !force {
		out.WriteString("rm: needs 1 argument\n")
		return
	}

	for _, p := range args {
		info, err := fsys.Stat(ctx, p)
		if err != nil {
			if !force || !errors.Is(err, fs.ErrNotExist) {
				report(out, "rm", p, err)
			}
			continue
		}
		if info.IsDir() {
			report(out, "rm", p, ErrIsDirectory)
			continue
		}

		if err := fsys.Remove(ctx, p); err != nil {
			report(out, "rm", p, err)
		}
	}
}

func runRemoveDir(ctx context.Context, fsys FS, _ string, args []string, out *strings.Builder) {
	if len(args) == 0 {
		out.WriteString("rmdir: needs 1 argument\n")
		return
	}

	for _, p := range args {
		if err := fsys.RemoveDir(ctx, p); err != nil {
			report(out, "rmdir", p, err)
		}
	}
}

func runMakeDir(ctx context.Context, fsys FS, flags string, args []string, out *strings.Builder) {
	if len(args) == 0 {
		out.WriteString("mkdir: needs 1 argument\n")
		return
	}

	parents := strings.Contains(flags, "p")
	for _, p := range args {
		if parents {
			if err := makeAll(ctx, fsys, p); err != nil {
				report(out, "mkdir", p, err)
			}
			continue
		}

		if err := fsys.MakeDir(ctx, p); err != nil {
			report(out, "mkdir", p, err)
		}
	}
}

func makeAll(ctx context.Context, fsys FS, p string) error {
	info, err := fsys.Stat(ctx, p)
	if err == nil {
		if !info.IsDir() {
			return fs.ErrExist
		}
		return nil
	}

	parent := path.Dir(p)
	if parent != p {
		if err := makeAll(ctx, fsys, parent); err != nil {
			return err
		}
	}

	return fsys.MakeDir(ctx, p)
}
