package main

import (
	"context"
	"fmt"

	"github.com/mwantia/adbfs/config"
	"github.com/mwantia/adbfs/device"
	"github.com/mwantia/adbfs/device/adb"
	"github.com/mwantia/adbfs/device/consul"
	"github.com/mwantia/adbfs/device/database"
	"github.com/mwantia/adbfs/device/memory"
	"github.com/mwantia/adbfs/device/s3"
	"github.com/mwantia/adbfs/log"
)

// seedFunc attaches the configured emulated devices once the transport is open.
type seedFunc func(ctx context.Context) error

func noSeed(context.Context) error { return nil }

func newTransport(cfg *config.Config, extra []string, logger *log.Logger) (device.Transport, seedFunc, error) {
	tc := cfg.Transport
	logger = logger.Named(tc.Kind)

	switch tc.Kind {
	case "adb":
		return adb.NewTransport(&adb.Config{
			Address:     tc.ADB.Address,
			DialTimeout: tc.ADB.DialTimeout,
			Logger:      logger,
		}), noSeed, nil

	case "consul":
		transport, err := consul.NewTransport(&consul.Config{
			Address:    tc.Consul.Address,
			Token:      tc.Consul.Token,
			Datacenter: tc.Consul.Datacenter,
			Namespace:  tc.Consul.Namespace,
			Service:    tc.Consul.Service,
			Tag:        tc.Consul.Tag,
			Logger:     logger,
		})
		return transport, noSeed, err

	case "memory":
		transport := memory.NewTransport()
		return transport, func(ctx context.Context) error {
			for _, id := range append(tc.Memory.Devices, extra...) {
				transport.Attach(id)
			}
			return nil
		}, nil

	case "sqlite", "postgres":
		var transport *database.Transport
		var err error
		devices := append(tc.SQLite.Devices, extra...)

		if tc.Kind == "sqlite" {
			transport, err = database.NewSQLiteTransport(tc.SQLite.Path)
		} else {
			transport, err = database.NewPostgresTransport(tc.Postgres.DSN)
			devices = append(tc.Postgres.Devices, extra...)
		}
		if err != nil {
			return nil, nil, err
		}

		return transport, func(ctx context.Context) error {
			for _, id := range devices {
				if err := transport.Attach(ctx, id); err != nil {
					return fmt.Errorf("failed to attach device '%s': %w", id, err)
				}
			}
			return nil
		}, nil

	case "s3":
		transport, err := s3.NewTransport(&s3.Config{
			Endpoint:     tc.S3.Endpoint,
			AccessKey:    tc.S3.AccessKey,
			SecretKey:    tc.S3.SecretKey,
			UseSSL:       tc.S3.UseSSL,
			Region:       tc.S3.Region,
			BucketPrefix: tc.S3.BucketPrefix,
		})
		if err != nil {
			return nil, nil, err
		}

		return transport, func(ctx context.Context) error {
			for _, id := range append(tc.S3.Devices, extra...) {
				if err := transport.Attach(ctx, id); err != nil {
					return fmt.Errorf("failed to attach device '%s': %w", id, err)
				}
			}
			return nil
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown transport kind '%s'", tc.Kind)
}
