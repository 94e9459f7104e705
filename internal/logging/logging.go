// Package logging builds the zerolog loggers used by every front-end.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// New returns a logger writing to w at the given level. Unknown levels fall
// back to info.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Console returns a human-readable logger writing to w, normally stderr.
func Console(w io.Writer, level string) zerolog.Logger {
	return New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: color.NoColor}, level)
}

// File opens path for appending and logs JSON lines to it. An empty path
// disables logging; the TUI owns the terminal so it cannot log to stderr.
func File(path, level string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, errors.Errorf("opening log file: %w", err)
	}

	return New(f, level), f, nil
}

// WithRun returns a context whose logger carries a fresh run_id.
func WithRun(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	logger := zerolog.Ctx(ctx).With().Str("run_id", id).Logger()
	return logger.WithContext(ctx), id
}
