// Package logger wraps log/slog with tint's colored console handler,
// adapted in place from common/logger: identical
// New/WithFields/WithRunID shape, with WithNodeID's analogue renamed to
// the board-execution vocabulary (WithTraceID) since this engine's unit
// of work is a node invocation inside a trace, not a queue task.
package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with the contextual-field helpers the rest of
// the engine expects (flow/context.Logger is satisfied structurally).
type Logger struct {
	*slog.Logger
}

// New builds a Logger; format "json" uses slog's JSON handler (for
// production log shipping), anything else uses tint's colored handler
// (for local development), matching common/logger's default.
func New(level, format string) *Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// WithRunID tags every subsequent log line with the board run id.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.With("run_id", runID)}
}

// WithTraceID tags every subsequent log line with a node-invocation
// trace id — this engine's analogue of common/logger's
// WithNodeID, since a trace is scoped to one node invocation.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{Logger: l.With("trace_id", traceID)}
}

type traceIDKey struct{}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
