// adbfs exposes attached Android devices as one filesystem.
//
// The mount command serves the bridge over FUSE; the remaining commands run
// a single bridge operation against the configured transport and exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/mwantia/adbfs/config"
	"github.com/mwantia/adbfs/log"
	"github.com/spf13/pflag"
)

type command struct {
	Name        string
	Usage       string
	Description string
	// Args is the exact number of positional arguments, or -1 for any.
	Args int
	Run  func(ctx context.Context, env *env, args []string) error
}

// env carries everything resolved from the global flags.
type env struct {
	configPath string
	config     *config.Config
	logger     *log.Logger
	devices    []string
}

var commands = []*command{
	mountCommand,
	serveCommand,
	workspaceInitCommand,
	devicesCommand,
	lsCommand,
	statCommand,
	catCommand,
	putCommand,
	mvCommand,
	rmCommand,
	mkdirCommand,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, transport, logLevel string
	var devices []string

	flagSet := pflag.NewFlagSet("adbfs", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	flagSet.StringVarP(&transport, "transport", "t", "", "transport kind overriding the config (adb, consul, memory, sqlite, postgres, s3)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level overriding the config")
	flagSet.StringSliceVar(&devices, "device", nil, "emulated device to attach on start (repeatable)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	name := flagSet.Arg(0)
	idx := slices.IndexFunc(commands, func(c *command) bool { return c.Name == name })
	if idx < 0 {
		return fmt.Errorf("unknown command '%s'", name)
	}

	cmd, args := commands[idx], flagSet.Args()[1:]
	if cmd.Args >= 0 && len(args) != cmd.Args {
		return fmt.Errorf("usage: adbfs %s", cmd.Usage)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if transport != "" {
		cfg.Transport.Kind = transport
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger("adbfs")
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.Run(ctx, &env{
		configPath: configPath,
		config:     cfg,
		logger:     logger,
		devices:    devices,
	}, args)
}

func printHelp(flagSet *pflag.FlagSet) {
	var sb strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&sb, "  %-38s %s\n", cmd.Usage, cmd.Description)
	}

	fmt.Fprintf(os.Stderr, `adbfs exposes attached Android devices as one filesystem.

Usage:
  adbfs [flags] <command> [args]

Commands:
%s
Flags:
%s`, sb.String(), flagSet.FlagUsages())
}
