// Package logger provides verbose logging for the mima CLI.
// When verbose mode is enabled via the --verbose flag, debug and info
// records are written to stderr to help users follow the ingestion and
// search pipelines. Errors are always written.
//
// Records are structured (log/slog text format) so that background
// components can attach fields such as the document id.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newLogger(os.Stderr, false)
)

func newLogger(w io.Writer, v bool) *slog.Logger {
	level := slog.LevelError
	if v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = newLogger(output, verbose)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger(output, verbose)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func log(level slog.Level, attrs []any, format string, args ...any) {
	l := current()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, args...), attrs...)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	log(slog.LevelDebug, nil, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	log(slog.LevelInfo, nil, format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	log(slog.LevelWarn, nil, format, args...)
}

// Error prints an error message. Errors are never suppressed.
func Error(format string, args ...any) {
	log(slog.LevelError, nil, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Component is a logger bound to a named component and a set of fields.
type Component struct {
	attrs []any
}

// For returns a logger that tags every record with component=name.
func For(name string) Component {
	return Component{attrs: []any{"component", name}}
}

// With returns a copy of c carrying additional key/value fields.
func (c Component) With(kv ...any) Component {
	attrs := make([]any, 0, len(c.attrs)+len(kv))
	attrs = append(attrs, c.attrs...)
	attrs = append(attrs, kv...)
	return Component{attrs: attrs}
}

// Debug prints a message if verbose mode is enabled.
func (c Component) Debug(format string, args ...any) {
	log(slog.LevelDebug, c.attrs, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func (c Component) Info(format string, args ...any) {
	log(slog.LevelInfo, c.attrs, format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func (c Component) Warn(format string, args ...any) {
	log(slog.LevelWarn, c.attrs, format, args...)
}

// Error prints an error message.
func (c Component) Error(format string, args ...any) {
	log(slog.LevelError, c.attrs, format, args...)
}
