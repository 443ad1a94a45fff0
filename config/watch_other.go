//go:build !linux

package config

import (
	"os"
	"time"
)

const interval = time.Second

// watch compares the modification time once per interval where inotify is unavailable.
func watch(path string, reload func(), stop <-chan struct{}) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := info.ModTime()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil || !info.ModTime().After(last) {
				continue
			}
			last = info.ModTime()
			reload()
		}
	}()

	return nil
}
