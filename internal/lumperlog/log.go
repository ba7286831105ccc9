// Package lumperlog wires structured logging through a context.Context,
// following the pattern xodudrkd-gophertainer uses in its main package:
// a single *slog.Logger stashed under a private context key, recreated
// per-process (parent and self-reexec'd child each get their own).
package lumperlog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const loggerKey contextKey = "lumper-logger"

// New builds the process-wide logger. debug raises the level to Debug;
// otherwise it defaults to Info, mirroring the DEBUG env var check the
// teacher performs in initLogger.
func New(debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug || os.Getenv("DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Discard returns a logger that drops everything. cmd/lumper installs it as
// the default logger in every self-reexec'd child, whose stdio may be
// attached to an interactive session where any stray log line would
// corrupt the terminal stream.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext recovers the logger stashed by WithLogger, falling back to
// slog.Default() if none was set.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
