// Package log provides a structured logging interface for specsel selectors.
//
// The interface is slog-compatible so the backing implementation can be
// switched without touching the selectors. Two backends ship with the package:
// a zerolog logger (the default) and a slog JSON logger that formats
// cockroachdb/errors stack traces.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("feature_selection").With(
//	    log.ModelNameKey, "CARS",
//	    log.EstimatorIDKey, uuid.NewString(),
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 100,
//	    log.FeaturesKey, 700,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key-value pairs. If the first field is an error it is
// attached as the error of the record.
type Logger interface {
	// Debug logs a debug-level message. Per-iteration progress of the
	// selectors is logged at this level.
	Debug(msg string, fields ...any)

	// Info logs an info-level message.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message.
	Warn(msg string, fields ...any)

	// Error logs an error-level message.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. Selectors obtain their
// loggers through the package-level provider, which tests replace.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
