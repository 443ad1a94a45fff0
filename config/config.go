// Package config loads the YAML configuration of the adbfs daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mwantia/adbfs"
	"github.com/mwantia/adbfs/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// SdcardFolderOnlyMode presents only the subtree directory in device root listings.
	// Default: true
	SdcardFolderOnlyMode bool `yaml:"sdcard_folder_only_mode"`

	// Subtree is the designated device directory. Default: sdcard
	Subtree string `yaml:"subtree"`

	// RootMapping is either "device" or "subtree". Default: device
	RootMapping string `yaml:"root_mapping"`

	ReservedNames []string `yaml:"reserved_names"`

	Settle    SettleConfig    `yaml:"settle"`
	Transport TransportConfig `yaml:"transport"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Fuse      FuseConfig      `yaml:"fuse"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

type SettleConfig struct {
	Delay    time.Duration `yaml:"delay"`
	Strategy string        `yaml:"strategy"`
}

type TransportConfig struct {
	// Kind selects the transport: adb, consul, memory, sqlite, postgres or s3.
	Kind string `yaml:"kind"`

	ADB      ADBConfig      `yaml:"adb"`
	Consul   ConsulConfig   `yaml:"consul"`
	Memory   MemoryConfig   `yaml:"memory"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	S3       S3Config       `yaml:"s3"`
}

type ADBConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type ConsulConfig struct {
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	Datacenter string `yaml:"datacenter"`
	Namespace  string `yaml:"namespace"`
	Service    string `yaml:"service"`
	Tag        string `yaml:"tag"`
}

// MemoryConfig lists the emulated devices attached on start.
type MemoryConfig struct {
	Devices []string `yaml:"devices"`
}

type SQLiteConfig struct {
	Path    string   `yaml:"path"`
	Devices []string `yaml:"devices"`
}

type PostgresConfig struct {
	DSN     string   `yaml:"dsn"`
	Devices []string `yaml:"devices"`
}

type S3Config struct {
	Endpoint     string   `yaml:"endpoint"`
	AccessKey    string   `yaml:"access_key"`
	SecretKey    string   `yaml:"secret_key"`
	UseSSL       bool     `yaml:"use_ssl"`
	Region       string   `yaml:"region"`
	BucketPrefix string   `yaml:"bucket_prefix"`
	Devices      []string `yaml:"devices"`
}

type TrackingConfig struct {
	// PollInterval is used for transports without native tracking. Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	NoColor    bool   `yaml:"no_color"`
	NoTerminal bool   `yaml:"no_terminal"`
}

type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

type FuseConfig struct {
	Mountpoint string        `yaml:"mountpoint"`
	AllowOther bool          `yaml:"allow_other"`
	Timeout    time.Duration `yaml:"timeout"`
}

type WorkspaceConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

func Default() *Config {
	return &Config{
		SdcardFolderOnlyMode: true,
		Subtree:              adbfs.DefaultSubtree,
		RootMapping:          string(adbfs.RootDevice),
		ReservedNames:        []string{".vscode"},
		Settle: SettleConfig{
			Delay:    adbfs.DefaultSettleDelay,
			Strategy: string(adbfs.SettleSleep),
		},
		Transport: TransportConfig{
			Kind: "adb",
			ADB: ADBConfig{
				Address:     "127.0.0.1:5037",
				DialTimeout: 5 * time.Second,
			},
			Consul: ConsulConfig{
				Address: "127.0.0.1:8500",
				Service: "adb-device",
			},
			SQLite: SQLiteConfig{
				Path: "adbfs.db",
			},
			S3: S3Config{
				BucketPrefix: "adbfs-",
			},
		},
		Tracking: TrackingConfig{
			PollInterval: adbfs.DefaultPollInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
		Fuse: FuseConfig{
			Mountpoint: "/mnt/adbfs",
			Timeout:    time.Second,
		},
		Workspace: WorkspaceConfig{
			Name: adbfs.WorkspaceName,
		},
	}
}

// LoadFile loads configuration from path on top of Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch adbfs.RootMapping(c.RootMapping) {
	case adbfs.RootDevice, adbfs.RootSubtree:
	default:
		return fmt.Errorf("unknown root_mapping '%s'", c.RootMapping)
	}

	switch adbfs.SettleStrategy(c.Settle.Strategy) {
	case adbfs.SettleSleep, adbfs.SettlePoll:
	default:
		return fmt.Errorf("unknown settle.strategy '%s'", c.Settle.Strategy)
	}

	switch c.Transport.Kind {
	case "adb", "consul", "memory", "sqlite", "postgres", "s3":
	default:
		return fmt.Errorf("unknown transport.kind '%s'", c.Transport.Kind)
	}

	if c.Settle.Delay < 0 {
		return fmt.Errorf("settle.delay must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Logger creates the process logger described by the log section.
func (c *Config) Logger(name string) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := log.Options{
		Level:      level,
		File:       c.Log.File,
		JSON:       c.Log.JSON,
		NoColor:    c.Log.NoColor,
		NoTerminal: c.Log.NoTerminal,
	}
	if c.Log.File != "" {
		opts.Rotation = log.DefaultRotation()
	}

	return log.New(name, opts), nil
}

// BridgeOptions converts the configuration into bridge options.
func (c *Config) BridgeOptions(logger *log.Logger) []adbfs.Option {
	return []adbfs.Option{
		adbfs.WithLogger(logger),
		adbfs.WithRestrictedMode(c.SdcardFolderOnlyMode),
		adbfs.WithSubtree(c.Subtree),
		adbfs.WithRootMapping(adbfs.RootMapping(c.RootMapping)),
		adbfs.WithReservedNames(c.ReservedNames...),
		adbfs.WithSettleDelay(c.Settle.Delay),
		adbfs.WithSettleStrategy(adbfs.SettleStrategy(c.Settle.Strategy)),
		adbfs.WithPollInterval(c.Tracking.PollInterval),
	}
}
