package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options configure New.
type Options struct {
	// Level is one of: debug, info, warn, error, fatal.
	Level string
	// File receives the logs. Empty writes to stderr so stdout stays clean
	// for command output.
	File string
	// Console switches from JSON lines to zerolog's human readable writer.
	Console bool
	// Hooks are attached to the returned logger.
	Hooks []zerolog.Hook
}

// New returns a logger configured by opts and a func that releases the log
// file. Log files are appended to, never truncated.
func New(opts Options) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, closer, fmt.Errorf("parse log level: %w", err)
	}

	var writer io.Writer = os.Stderr
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { _ = f.Close() }
		writer = f
	}

	if opts.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen, NoColor: opts.File != ""}
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	for _, h := range opts.Hooks {
		l = l.Hook(h)
	}

	return l, closer, nil
}
