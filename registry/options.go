package registry

import (
	"time"

	"github.com/mwantia/adbfs/log"
)

type Option func(*Options) error

type Options struct {
	Logger       *log.Logger
	PollInterval time.Duration
	Listener     func(Event)
}

func newDefaultOptions() *Options {
	return &Options{
		Logger:       log.NewNop(),
		PollInterval: 2 * time.Second,
		Listener:     func(Event) {},
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		if logger != nil {
			o.Logger = logger
		}
		return nil
	}
}

// WithPollInterval sets the enumeration interval used for transports
// without native tracking.
func WithPollInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval > 0 {
			o.PollInterval = interval
		}
		return nil
	}
}

// WithListener receives every attach and detach event. It is invoked from
// the tracking goroutine and must not block for long.
func WithListener(fn func(Event)) Option {
	return func(o *Options) error {
		if fn != nil {
			o.Listener = fn
		}
		return nil
	}
}
