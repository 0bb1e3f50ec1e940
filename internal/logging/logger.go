// Package logging provides structured logging configuration using log/slog.
//
// Loggers obtained through FromContext carry the chi request id for admin API
// calls and the publication run id and area for pipeline work, so every line a
// job writes can be correlated back to one area's run.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	ctxKeyRunID contextKey = "run_id"
	ctxKeyArea  contextKey = "area"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. Setup uses it for the process-wide logger;
// tests use it to capture output.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ContextWithRun tags ctx with a publication run id and the area it covers.
func ContextWithRun(ctx context.Context, runID, area string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRunID, runID)
	return context.WithValue(ctx, ctxKeyArea, area)
}

// RunIDFromContext returns the run id set by ContextWithRun, or "".
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRunID).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the default logger enriched with whatever correlation
// fields ctx carries: request_id from chi's RequestID middleware, run_id and
// area from ContextWithRun.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if area, ok := ctx.Value(ctxKeyArea).(string); ok && area != "" {
		logger = logger.With("area", area)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
//	stageLogger := logging.WithFields(ctx, "stage", "upload")
//	stageLogger.Info("upload started", "bytes", size)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
