// Package logging sets up the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure Setup
type Options struct {
	// Level is one of debug, info, warn, error; anything else means info
	Level string

	// File, when set, receives a rotated copy of every record
	File string

	// Stderr receives the console copy; nil means os.Stderr
	Stderr io.Writer
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text logger over stderr and the optional rotating file. The
// returned closer flushes the file and is safe to call when there is none.
func New(opts Options) (*slog.Logger, func() error) {
	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			slog.Debug("log directory creation failed", "error", err)
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file.Close
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return slog.New(handler), closer
}

// Setup installs the logger from New as the slog default
func Setup(opts Options) func() error {
	logger, closer := New(opts)
	slog.SetDefault(logger)
	return closer
}
