package vecsim

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the structured logger used by the engine. Every operation logs
// with the same attribute keys so that output can be filtered by id, metric
// or strategy.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text at info level to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger logs JSON lines at or above level to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return newStderrLogger(level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(w, o)
	})
}

// NewTextLogger logs key=value lines at or above level to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return newStderrLogger(level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
		return slog.NewTextHandler(w, o)
	})
}

func newStderrLogger(level slog.Level, mk func(io.Writer, *slog.HandlerOptions) slog.Handler) *Logger {
	return &Logger{Logger: slog.New(mk(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// outcome logs msg at level on success, or msg+" failed" at error level with
// the error attached.
func (l *Logger) outcome(ctx context.Context, level slog.Level, msg string, err error, args ...any) {
	if err != nil {
		l.ErrorContext(ctx, msg+" failed", append(args, "error", err)...)
		return
	}
	l.Log(ctx, level, msg, args...)
}

// LogPut logs an insert or update.
func (l *Logger) LogPut(ctx context.Context, id string, dimension int, err error) {
	l.outcome(ctx, slog.LevelDebug, "put", err, "id", id, "dimension", dimension)
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, id string, existed bool) {
	l.DebugContext(ctx, "delete", "id", id, "existed", existed)
}

// LogSearch logs a query together with the strategy that answered it.
func (l *Logger) LogSearch(ctx context.Context, k int, strategy string, results int, err error) {
	l.outcome(ctx, slog.LevelDebug, "search", err, "k", k, "strategy", strategy, "results", results)
}

// LogRebuild logs a full graph rebuild. A failed rebuild leaves the previous
// graph in place.
func (l *Logger) LogRebuild(ctx context.Context, metric string, nodes, staleness int, took time.Duration, err error) {
	args := []any{"metric", metric, "staleness", staleness}
	if err == nil {
		args = append(args, "nodes", nodes, "took", took)
	}
	l.outcome(ctx, slog.LevelInfo, "index rebuild", err, args...)
}

// LogFlush logs pending mutations applied to the graphs.
func (l *Logger) LogFlush(ctx context.Context, mutations int) {
	l.DebugContext(ctx, "flush", "mutations", mutations)
}

// LogExport logs a snapshot export.
func (l *Logger) LogExport(ctx context.Context, records int, err error) {
	l.outcome(ctx, slog.LevelInfo, "export", err, "records", records)
}

// LogImport logs a snapshot import.
func (l *Logger) LogImport(ctx context.Context, records int, err error) {
	l.outcome(ctx, slog.LevelInfo, "import", err, "records", records)
}
