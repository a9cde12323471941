// Package logger provides a small structured logging facade over log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Constants for logging operations.
const (
	callerSkipFrames = 3 // getCaller -> log -> logging method -> actual caller

	FormatText = "text"
	FormatJSON = "json"
)

// Logger defines the logging interface.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that always attaches fields.
	With(fields ...Field) Logger
	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field            { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val any) Field                { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

// slogLogger implements Logger using slog.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Named(name string) Logger {
	return &slogLogger{l: s.l.With(slog.String("component", name))}
}

func (s *slogLogger) With(fields ...Field) Logger {
	args := make([]any, 0, len(fields))
	for _, a := range convertFields(fields) {
		args = append(args, a)
	}
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelInfo, msg, fields)
}

func (s *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelError, msg, fields)
}

func (s *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelDebug, msg, fields)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelWarn, msg, fields)
}

func (s *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.l.Enabled(ctx, level) {
		return
	}
	fields = append(fields, String("source", getCaller()))
	s.l.LogAttrs(ctx, level, msg, convertFields(fields)...)
}

// convertFields converts our Field type to slog.Attr.
func convertFields(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

// Option configures Init.
type Option func(*settings)

type settings struct {
	format string
	out    io.Writer
}

// WithFormat selects the handler: "text" (default) or "json".
func WithFormat(format string) Option {
	return func(s *settings) {
		if format != "" {
			s.format = strings.ToLower(strings.TrimSpace(format))
		}
	}
}

// WithWriter redirects log output, mostly useful in tests.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

var (
	mu       sync.RWMutex
	global   Logger
	levelVar slog.LevelVar
)

// Init (re)initializes the global logger. The current level is preserved
// across calls so Init can be repeated once configuration is loaded.
func Init(opts ...Option) error {
	st := settings{format: FormatText, out: os.Stdout}
	for _, opt := range opts {
		opt(&st)
	}

	hopts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	switch st.format {
	case FormatText:
		h = slog.NewTextHandler(st.out, hopts)
	case FormatJSON:
		h = slog.NewJSONHandler(st.out, hopts)
	default:
		return fmt.Errorf("unknown log format: %s", st.format)
	}

	mu.Lock()
	global = &slogLogger{l: slog.New(h)}
	mu.Unlock()
	return nil
}

// getCaller returns the caller location in format relative/path/file.go:line.
func getCaller() string {
	_, file, line, ok := runtime.Caller(callerSkipFrames)
	if !ok {
		return "unknown:0"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	rel, err := filepath.Rel(cwd, file)
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return fmt.Sprintf("%s:%d", rel, line)
}

// Get returns the global logger.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync flushes buffered log entries. slog does not buffer.
func Sync() error {
	return nil
}

// SetLevel updates the current logging level for the global logger handler.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		SetLevel(slog.LevelDebug)
	case "", "info":
		SetLevel(slog.LevelInfo)
	case "warn", "warning":
		SetLevel(slog.LevelWarn)
	case "error":
		SetLevel(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}
