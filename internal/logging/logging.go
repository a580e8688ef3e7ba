// Package logging builds the slog loggers shared by the binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New writes JSON to stdout for servers, text to stderr otherwise so CLI
// output on stdout stays clean.
func New(level string, json bool) *slog.Logger {
	if json {
		return NewWith(os.Stdout, level, true)
	}
	return NewWith(os.Stderr, level, false)
}

func NewWith(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
