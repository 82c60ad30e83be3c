// Package logger builds the process-wide slog.Logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
}

// NewLogger returns a text or JSON logger writing to output at the configured
// level. A nil output writes to stderr. Unknown levels fall back to info and
// unknown formats to text.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		*level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
