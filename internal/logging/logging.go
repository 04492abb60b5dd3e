// Package logging sets up the process-wide structured logger and the
// context plumbing used to carry a request- or job-scoped logger down
// through handlers and collectors.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey int

const loggerContextKey contextKey = iota

// New builds the process-wide logger. JSON output is used unless level is
// "debug", in which case a human-readable text handler is used instead.
func New(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if lvl == slog.LevelDebug {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// WithContext returns a new context carrying logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger stored in ctx, or a fallback text
// logger writing to stderr if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
