package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Handlers and services take it
// via constructor injection so tests can swap in a discard logger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
