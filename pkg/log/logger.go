package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatSlog    = "slog"
)

// SetupLogger installs the package-level provider from CLI configuration.
// "json" and "console" use zerolog, "slog" uses a slog JSON handler that
// appends cockroachdb/errors stack traces.
func SetupLogger(format, loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON, "":
		SetLoggerProvider(NewZerologProvider(os.Stderr, level, false))
	case FormatConsole:
		SetLoggerProvider(NewZerologProvider(os.Stderr, level, true))
	case FormatSlog:
		SetLoggerProvider(NewSlogProvider(os.Stderr, level))
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	return nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SlogProvider is a LoggerProvider backed by log/slog.
type SlogProvider struct {
	mu    sync.Mutex
	level *slog.LevelVar
	base  *slog.Logger
}

// NewSlogProvider creates a provider that writes JSON records to w.
func NewSlogProvider(w io.Writer, level Level) *SlogProvider {
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	ops := slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	}
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(w, &ops))
	return &SlogProvider{level: lv, base: slog.New(handler)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{l: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: p.base.With(ComponentKey, name)}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *SlogProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level.Set(slog.Level(level))
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, slogArgs(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, slogArgs(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, slogArgs(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, slogArgs(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(slogArgs(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// slogArgs turns a leading error into an ErrAttr so ErrFmtHandler can attach its stack.
func slogArgs(fields []any) []any {
	if len(fields) == 0 {
		return fields
	}
	if err, ok := fields[0].(error); ok {
		return append([]any{ErrAttr(err)}, fields[1:]...)
	}
	return fields
}
