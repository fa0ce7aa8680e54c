package sloger

import (
	"context"
	"log/slog"
)

type ContextKey string

var LoggerKey ContextKey = "logger"

var (
	DefaultLogger = slog.Default()
)

func SetDefaultLogger(l *slog.Logger) {
	DefaultLogger = l
}

func With(args ...any) *slog.Logger {
	if DefaultLogger == nil {
		return slog.With(args...)
	}
	return DefaultLogger.With(args...)
}

// SetInvocationId returns a context carrying a logger tagged with the relay invocation id.
func SetInvocationId(ctx context.Context, invocationId string, args ...any) context.Context {
	logger := FromContext(ctx).With(append([]any{"invocation_id", invocationId}, args...)...)
	return WithLogger(ctx, logger)
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger stored on ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(LoggerKey).(*slog.Logger)
	if !ok {
		// Fallback to the default logger if no logger is found in the context
		if DefaultLogger != nil {
			return DefaultLogger
		}
		return slog.Default()
	}
	return logger
}
