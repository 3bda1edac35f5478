package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/gitpipe/internal/errors"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// Logger provides structured logging with slog
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New creates a new Logger with the given configuration
func New(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		slog:   slog.New(handler),
		config: config,
	}
}

// Default creates a logger with default configuration
func Default() *Logger {
	return New(DefaultConfig())
}

// Development creates a logger with development configuration
func Development() *Logger {
	return New(DevelopmentConfig())
}

// Nop creates a logger that discards everything
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// With returns a new Logger with the given attributes added to all log entries
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Named scopes the logger to a component, e.g. "scheduler" or "chain".
func (l *Logger) Named(component string) *Logger {
	return l.With("component", component)
}

// WithTask adds the task's command line to all log entries
func (l *Logger) WithTask(t *task.Task) *Logger {
	if t == nil {
		return l
	}
	return l.With("task", t.String())
}

// WithError adds error details to the logger.
// A GitError contributes its code, kind and originating task.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	gitErr, ok := errors.AsGitError(err)
	if !ok {
		return l.With("error", err.Error())
	}

	args := []any{
		"error", gitErr.Message,
		"error_code", string(gitErr.Code),
		"error_kind", gitErr.Kind.String(),
	}
	if gitErr.Plugin != "" {
		args = append(args, "plugin", gitErr.Plugin)
	}
	if gitErr.Task != nil {
		args = append(args, "failed_task", gitErr.Task.String())
	}
	if gitErr.Cause != nil {
		args = append(args, "cause", gitErr.Cause.Error())
	}
	return l.With(args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// DebugContext logs a debug message with context
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slog.DebugContext(ctx, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// ErrorContext logs an error message with context
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}

// Enabled returns whether the logger is enabled for the given level
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}
