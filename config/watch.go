package config

import (
	"path/filepath"
	"sync"

	"github.com/mwantia/adbfs/log"
)

// Watch reloads the configuration file whenever it is rewritten or replaced
// and calls fn with the result. Files that fail to load are skipped.
// The returned function stops the watcher.
func Watch(path string, logger *log.Logger, fn func(*Config)) (func(), error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	stop := make(chan struct{})
	reload := func() {
		cfg, err := LoadFile(absolute)
		if err != nil {
			logger.Warn("Ignoring config change: %v", err)
			return
		}

		logger.Debug("Reloaded config %s", absolute)
		fn(cfg)
	}

	if err := watch(absolute, reload, stop); err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}, nil
}
