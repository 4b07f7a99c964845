// Package logger provides levelled logging for wikisync.
// Messages at or above the configured level are written to stderr as
// "[LEVEL] message". When verbose mode is enabled via the --verbose flag,
// debug messages are printed too, which shows every decision of a pass.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/phuslu/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	level             = log.WarnLevel
	output  io.Writer = os.Stderr
	backend           = newBackend(output, level)
)

// newBackend builds a phuslu logger that prints "[LEVEL] message" lines.
func newBackend(w io.Writer, lvl log.Level) *log.Logger {
	return &log.Logger{
		Level: lvl,
		Writer: &log.ConsoleWriter{
			Writer: w,
			Formatter: func(w io.Writer, a *log.FormatterArgs) (int, error) {
				return fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(a.Level), a.Message)
			},
		},
	}
}

func rebuild() {
	lvl := level
	if verbose {
		lvl = log.DebugLevel
	}
	backend = newBackend(output, lvl)
}

// ParseLevel maps a configured level name to a log level.
// "warning" is accepted as an alias of "warn". Unknown names map to warn.
func ParseLevel(name string) log.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error", "critical":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// SetLevel sets the minimum level by name (debug, info, warning, error).
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(name)
	rebuild()
}

// SetVerbose enables or disables verbose logging.
// Verbose mode prints every level regardless of SetLevel.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
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
	rebuild()
}

// Reset restores the default level, output and verbosity.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	verbose = false
	level = log.WarnLevel
	output = os.Stderr
	rebuild()
}

// Debug prints a debug message.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	backend.Debug().Msgf(format, args...)
}

// Section prints a section header if debug output is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose || level <= log.DebugLevel {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	backend.Info().Msgf(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	backend.Warn().Msgf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	backend.Error().Msgf(format, args...)
}
