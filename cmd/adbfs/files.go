package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mwantia/adbfs"
)

// openBridge opens the configured transport, seeds emulated devices and
// returns the bridge together with its cleanup.
func openBridge(ctx context.Context, env *env) (*adbfs.FileSystem, func(), error) {
	transport, seed, err := newTransport(env.config, env.devices, env.logger)
	if err != nil {
		return nil, nil, err
	}

	fs, err := adbfs.New(ctx, transport, env.config.BridgeOptions(env.logger.Named("bridge"))...)
	if err != nil {
		return nil, nil, err
	}

	closeBridge := func() {
		fs.Close(context.Background())
	}

	if err := seed(ctx); err != nil {
		closeBridge()
		return nil, nil, err
	}

	return fs, closeBridge, nil
}

// withBridge runs fn against a freshly opened bridge.
func withBridge(fn func(ctx context.Context, fs *adbfs.FileSystem, args []string) error) func(context.Context, *env, []string) error {
	return func(ctx context.Context, env *env, args []string) error {
		fs, closeBridge, err := openBridge(ctx, env)
		if err != nil {
			return err
		}
		defer closeBridge()

		return fn(ctx, fs, args)
	}
}

var devicesCommand = &command{
	Name:        "devices",
	Usage:       "devices",
	Description: "List attached devices",
	Args:        0,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		entries, err := fs.ListDirectory(ctx, "/")
		if err != nil {
			return err
		}

		for _, entry := range entries {
			fmt.Println(entry.Name)
		}
		return nil
	}),
}

var lsCommand = &command{
	Name:        "ls",
	Usage:       "ls <path>",
	Description: "List a directory",
	Args:        1,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		entries, err := fs.ListDirectory(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, entry := range entries {
			kind := "-"
			if entry.IsDir() {
				kind = "d"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", kind, entry.Size, entry.ModTime().Format(time.DateTime), entry.Name)
		}
		return w.Flush()
	}),
}

var statCommand = &command{
	Name:        "stat",
	Usage:       "stat <path>",
	Description: "Print the entry of a path as JSON",
	Args:        1,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		entry, err := fs.Stat(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := entry.Marshal()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}),
}

var catCommand = &command{
	Name:        "cat",
	Usage:       "cat <path>",
	Description: "Write the content of a file to stdout",
	Args:        1,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		content, err := fs.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}

		_, err = os.Stdout.Write(content)
		return err
	}),
}

var putCommand = &command{
	Name:        "put",
	Usage:       "put <local|-> <path>",
	Description: "Write a local file or stdin to a path",
	Args:        2,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		var content []byte
		var err error
		if args[0] == "-" {
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		return fs.WriteFile(ctx, args[1], content, adbfs.WriteOptions{Create: true, Overwrite: true})
	}),
}

var mvCommand = &command{
	Name:        "mv",
	Usage:       "mv <path> <path>",
	Description: "Rename a path on the same device",
	Args:        2,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		return fs.Rename(ctx, args[0], args[1], adbfs.RenameOptions{})
	}),
}

var rmCommand = &command{
	Name:        "rm",
	Usage:       "rm <path>",
	Description: "Delete a file or an empty directory",
	Args:        1,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		return fs.Delete(ctx, args[0])
	}),
}

var mkdirCommand = &command{
	Name:        "mkdir",
	Usage:       "mkdir <path>",
	Description: "Create a directory",
	Args:        1,
	Run: withBridge(func(ctx context.Context, fs *adbfs.FileSystem, args []string) error {
		return fs.CreateDirectory(ctx, args[0])
	}),
}
