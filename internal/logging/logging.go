// Package logging provides the structured logger used across sindex's
// commands. It mirrors the conventions of the teacher's logging setup:
// one slog.Logger per component, level controlled by verbosity.
package logging

import (
	"log/slog"
	"os"
)

// Default returns a text-handler slog.Logger tagged with the given
// component name, writing to stderr at Info level.
func Default(component string) *slog.Logger {
	return New(component, false)
}

// New returns a slog.Logger tagged with component, writing to stderr.
// When verbose is true the handler is set to Debug level.
func New(component string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("component", component)
}
