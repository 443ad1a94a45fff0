package adbfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwantia/adbfs/data/translate"
	"github.com/mwantia/adbfs/log"
)

// RootMapping selects how the device root is mapped onto the remote filesystem.
type RootMapping string

const (
	// RootDevice maps the device root to "/" and every sub-path 1:1.
	RootDevice RootMapping = "device"
	// RootSubtree prefixes every remote path with "/<subtree>".
	RootSubtree RootMapping = "subtree"
)

type SettleStrategy string

const (
	SettleSleep SettleStrategy = "sleep"
	SettlePoll  SettleStrategy = "poll"
)

const (
	DefaultSubtree      = "sdcard"
	DefaultSettleDelay  = 300 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

type Options struct {
	Logger *log.Logger

	RestrictedMode bool
	Subtree        string
	RootMapping    RootMapping
	ReservedNames  []string

	SettleDelay    time.Duration
	SettleStrategy SettleStrategy

	PollInterval time.Duration
	Translator   translate.Translator
}

type Option func(*Options) error

func newDefaultOptions() *Options {
	return &Options{
		Logger:         log.NewNop(),
		RestrictedMode: true,
		Subtree:        DefaultSubtree,
		RootMapping:    RootDevice,
		ReservedNames:  []string{".vscode"},
		SettleDelay:    DefaultSettleDelay,
		SettleStrategy: SettleSleep,
		PollInterval:   DefaultPollInterval,
		Translator:     translate.FileMode{},
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		if logger != nil {
			opts.Logger = logger
		}
		return nil
	}
}

// WithRestrictedMode toggles presenting only the subtree directory in device root listings.
func WithRestrictedMode(enabled bool) Option {
	return func(opts *Options) error {
		opts.RestrictedMode = enabled
		return nil
	}
}

func WithSubtree(name string) Option {
	return func(opts *Options) error {
		name = strings.Trim(name, "/")
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid subtree name '%s'", name)
		}
		opts.Subtree = name
		return nil
	}
}

func WithRootMapping(mapping RootMapping) Option {
	return func(opts *Options) error {
		switch mapping {
		case RootDevice, RootSubtree:
			opts.RootMapping = mapping
			return nil
		}
		return fmt.Errorf("unknown root mapping '%s'", mapping)
	}
}

// WithReservedNames replaces the device identifiers that are always rejected.
func WithReservedNames(names ...string) Option {
	return func(opts *Options) error {
		opts.ReservedNames = names
		return nil
	}
}

func WithSettleDelay(delay time.Duration) Option {
	return func(opts *Options) error {
		if delay < 0 {
			return fmt.Errorf("settle delay must not be negative")
		}
		opts.SettleDelay = delay
		return nil
	}
}

func WithSettleStrategy(strategy SettleStrategy) Option {
	return func(opts *Options) error {
		switch strategy {
		case SettleSleep, SettlePoll:
			opts.SettleStrategy = strategy
			return nil
		}
		return fmt.Errorf("unknown settle strategy '%s'", strategy)
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(opts *Options) error {
		opts.PollInterval = interval
		return nil
	}
}

func WithTranslator(translator translate.Translator) Option {
	return func(opts *Options) error {
		if translator != nil {
			opts.Translator = translator
		}
		return nil
	}
}
