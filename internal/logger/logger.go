// Package logger constructs the process-wide structured logger: JSON lines
// on the Lambda path (picked up by CloudWatch), colorized text for local
// runs.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger writing to stderr. verbose lowers the level to
// debug; json selects the machine-readable handler.
func New(verbose, json bool) *slog.Logger {
	return NewWithWriter(os.Stderr, verbose, json)
}

// NewWithWriter is New with an explicit destination. Useful for testing.
func NewWithWriter(w io.Writer, verbose, json bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}
	return slog.New(handler)
}
