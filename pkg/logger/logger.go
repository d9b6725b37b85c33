// Package logger provides structured logging on top of log/slog.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is the type used for values the logger pulls out of a context.
type ContextKey string

const (
	RequestIDKey    ContextKey = "request_id"
	TraceIDKey      ContextKey = "trace_id"
	SpanIDKey       ContextKey = "span_id"
	UserIDKey       ContextKey = "user_id"
	BookIDKey       ContextKey = "book_id"
	SessionTokenKey ContextKey = "session_token"
)

var defaultLogger *slog.Logger

// Init configures the process-wide logger.
func Init(level string, format string) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the process-wide logger, initializing it if needed.
func Default() *slog.Logger {
	if defaultLogger == nil {
		Init("info", "json")
	}
	return defaultLogger
}

// FromContext returns a logger enriched with identifiers found in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	logger := Default()

	if v := ctx.Value(RequestIDKey); v != nil {
		logger = logger.With("request_id", v)
	}
	if v := ctx.Value(TraceIDKey); v != nil {
		logger = logger.With("trace_id", v)
	}
	if v := ctx.Value(SpanIDKey); v != nil {
		logger = logger.With("span_id", v)
	}
	if v := ctx.Value(UserIDKey); v != nil {
		logger = logger.With("user_id", v)
	}
	if v := ctx.Value(BookIDKey); v != nil {
		logger = logger.With("book_id", v)
	}
	if v := ctx.Value(SessionTokenKey); v != nil {
		logger = logger.With("session_token", v)
	}

	return logger
}

// WithContext stores a log enrichment value in the context.
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// Debug logs at DEBUG level with context enrichment.
func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

// Info logs at INFO level with context enrichment.
func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

// Warn logs at WARN level with context enrichment.
func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error logs at ERROR level; err may be nil.
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}

// Fatal logs at ERROR level and exits the process.
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
