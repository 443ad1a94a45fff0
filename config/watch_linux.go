//go:build linux

package config

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const debounce = 50 * time.Millisecond

// watch monitors the parent directory, so atomic replacements by editors
// are observed as well as in-place writes.
func watch(path string, reload func(), stop <-chan struct{}) error {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return err
	}

	if _, err := unix.InotifyAddWatch(fd, filepath.Dir(path), unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return err
	}

	go loop(fd, filepath.Base(path), reload, stop)
	return nil
}

func loop(fd int, filename string, reload func(), stop <-chan struct{}) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(fds, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if count == 0 {
			continue
		}

		n, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if !matches(buffer[:n], filename) {
			continue
		}

		time.Sleep(debounce)
		drain(fd, buffer)
		reload()
	}
}

// matches reports whether any inotify event in buffer names filename.
func matches(buffer []byte, filename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		length := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		size := unix.SizeofInotifyEvent + length
		if offset+size > len(buffer) {
			break
		}

		if length > 0 {
			name := buffer[offset+unix.SizeofInotifyEvent : offset+size]
			if i := bytes.IndexByte(name, 0); i >= 0 {
				name = name[:i]
			}
			if string(name) == filename {
				return true
			}
		}

		offset += size
	}

	return false
}

func drain(fd int, buffer []byte) {
	for {
		if _, err := unix.Read(fd, buffer); err != nil {
			return
		}
	}
}
