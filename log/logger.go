package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	out *output

	Name  string
	Level Level

	TimeFormat string
	NoColor    bool
	JSON       bool
}

// Options configures the shared output of a root logger.
type Options struct {
	Level      Level
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *Rotation
}

type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// output is shared between a logger and all of its named children.
type output struct {
	mu     sync.Mutex
	writer io.Writer
	file   *lumberjack.Logger
	color  bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func DefaultRotation() *Rotation {
	return &Rotation{
		MaxSize:    128,
		MaxBackups: 5,
		MaxAge:     16,
		Compress:   false,
	}
}

func New(name string, opts Options) *Logger {
	if opts.Rotation == nil {
		opts.Rotation = DefaultRotation()
	}

	out := &output{}
	var writers []io.Writer

	if !opts.NoTerminal {
		writers = append(writers, os.Stderr)
		out.color = !opts.NoColor
	}

	if opts.File != "" {
		out.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.Rotation.MaxSize,
			MaxBackups: opts.Rotation.MaxBackups,
			MaxAge:     opts.Rotation.MaxAge,
			Compress:   opts.Rotation.Compress,
		}
		writers = append(writers, out.file)
		// Escape codes must never end up in rotated files.
		out.color = false
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	out.writer = io.MultiWriter(writers...)

	return &Logger{
		out:        out,
		Name:       name,
		Level:      opts.Level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    opts.NoColor,
		JSON:       opts.JSON,
	}
}

// NewWriter creates a logger writing uncolored lines into w.
func NewWriter(name string, level Level, w io.Writer) *Logger {
	return &Logger{
		out:        &output{writer: w},
		Name:       name,
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return NewWriter("", Disabled, io.Discard)
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if l == nil || level < l.Level || l.Level == Disabled {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formatted := fmt.Sprintf(msg, args...)

	l.out.mu.Lock()
	if l.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   l.Name,
			Message:   formatted,
		}

		b, _ := json.Marshal(entry)
		fmt.Fprintf(l.out.writer, "%s\n", b)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if l.Name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
		}

		if l.out.color && !l.NoColor {
			fmt.Fprintf(l.out.writer, "%s%s %s\033[0m\n", level.color(), prefix, formatted)
		} else {
			fmt.Fprintf(l.out.writer, "%s %s\n", prefix, formatted)
		}
	}
	l.out.mu.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

// Named creates a child logger sharing the same output.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.Name == "" {
		child.Name = name
	} else {
		child.Name = fmt.Sprintf("%s/%s", l.Name, name)
	}

	return &child
}

// Close releases the rotated log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.out.file == nil {
		return nil
	}

	return l.out.file.Close()
}
