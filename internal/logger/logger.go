// Package logger builds the JSON slog logger shared by the server and CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger writing to w at the given minimum level.
// A nil w writes to stdout.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything. Used by tests and by CLI
// commands run without --verbose.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
