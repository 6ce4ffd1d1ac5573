package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects where log records go.
type Options struct {
	// Console receives human readable text records. Defaults to os.Stderr.
	Console io.Writer

	// File, when non-empty, additionally receives JSON records. The file
	// is appended to and created with 0600 permissions.
	File string

	// Verbose lowers the level from Info to Debug.
	Verbose bool
}

// New builds the application logger. Console output is text, the optional
// log file gets JSON, and both pass through SecureHandler. The returned
// close function must be called on exit; it is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	text := slog.NewTextHandler(console, handlerOpts)

	if opts.File == "" {
		return slog.New(NewSecureHandler(text)), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWithWriters(console, f, opts.Verbose), f.Close, nil
}

// NewWithWriters fans records out to a text writer and a JSON writer.
func NewWithWriters(text, jsonOut io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	return slog.New(NewSecureHandler(slogmulti.Fanout(
		slog.NewTextHandler(text, handlerOpts),
		slog.NewJSONHandler(jsonOut, handlerOpts),
	)))
}
