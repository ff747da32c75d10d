package transport

import (
	"io"
	"log/slog"
)

// Logger is the interface for structured logging.
// *slog.Logger satisfies it; the bincrc command plugs in a zap logger.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// NopLogger returns a Logger that drops everything.
func NopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
