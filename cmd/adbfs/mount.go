package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/config"
	"github.com/mwantia/adbfs/device/adb"
	"github.com/mwantia/adbfs/fuse"
	"github.com/mwantia/adbfs/metrics"
	"github.com/mwantia/adbfs/notify"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var mountCommand = &command{
	Name:        "mount",
	Usage:       "mount [mountpoint]",
	Description: "Serve the device filesystem over FUSE until interrupted",
	Args:        -1,
	Run:         runMount,
}

var serveCommand = &command{
	Name:        "serve",
	Usage:       "serve [address]",
	Description: "Serve the transport devices over the adb host protocol",
	Args:        -1,
	Run:         runServe,
}

var workspaceInitCommand = &command{
	Name:        "workspace-init",
	Usage:       "workspace-init",
	Description: "Link the mountpoint into the workspace directory",
	Args:        0,
	Run:         runWorkspaceInit,
}

func newHost(env *env) (*fuse.Host, error) {
	return fuse.NewHost(fuse.Options{
		Mountpoint:   env.config.Fuse.Mountpoint,
		WorkspaceDir: env.config.Workspace.Dir,
		AllowOther:   env.config.Fuse.AllowOther,
		Timeout:      env.config.Fuse.Timeout,
		Logger:       env.logger.Named("fuse"),
	})
}

func runMount(ctx context.Context, env *env, args []string) error {
	if len(args) > 0 {
		env.config.Fuse.Mountpoint = args[0]
	}

	host, err := newHost(env)
	if err != nil {
		return err
	}

	transport, seed, err := newTransport(env.config, env.devices, env.logger)
	if err != nil {
		return err
	}

	ext, err := adbfs.Activate(ctx, transport, host, env.config.BridgeOptions(env.logger.Named("bridge"))...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()

		ext.Dispose(shutdownCtx)
		return nil
	})

	g.Go(func() error {
		host.Wait()
		cancel()
		return nil
	})

	if err := seed(ctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	if env.config.Workspace.Dir != "" {
		if err := ext.Commands().Execute(ctx, adbfs.CommandWorkspaceInit); err != nil {
			env.logger.Warn("Failed to add workspace root: %v", err)
		}
	}

	if env.configPath != "" {
		restricted := env.config.SdcardFolderOnlyMode
		stopWatch, err := config.Watch(env.configPath, env.logger.Named("config"), func(cfg *config.Config) {
			if cfg.SdcardFolderOnlyMode != restricted {
				restricted = cfg.SdcardFolderOnlyMode
				ext.ConfigurationChanged(restricted)
			}
		})
		if err != nil {
			env.logger.Warn("Config changes will not be applied: %v", err)
		} else {
			defer stopWatch()
		}
	}

	if listen := env.config.Metrics.Listen; listen != "" {
		serveMetrics(gctx, g, env, listen)
	}

	env.logger.Info("Serving %s on %s", notify.RootURI, env.config.Fuse.Mountpoint)
	return g.Wait()
}

func serveMetrics(ctx context.Context, g *errgroup.Group, env *env, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		env.logger.Info("Serving metrics on %s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()

		return server.Shutdown(shutdownCtx)
	})
}

func runServe(ctx context.Context, env *env, args []string) error {
	address := "127.0.0.1:5038"
	if len(args) > 0 {
		address = args[0]
	}

	transport, seed, err := newTransport(env.config, env.devices, env.logger)
	if err != nil {
		return err
	}
	if err := transport.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(context.Background()); err != nil {
			env.logger.Warn("Failed to close transport '%s': %v", transport.Name(), err)
		}
	}()

	if err := seed(ctx); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	env.logger.Info("Serving adb protocol for '%s' on %s", transport.Name(), listener.Addr())
	return adb.NewServer(transport, env.logger.Named("server")).Serve(ctx, listener)
}

func runWorkspaceInit(ctx context.Context, env *env, args []string) error {
	host, err := newHost(env)
	if err != nil {
		return err
	}

	return host.AddWorkspaceRoot(ctx, notify.RootURI, env.config.Workspace.Name)
}
