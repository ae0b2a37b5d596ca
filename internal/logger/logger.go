// Package logger configures the process-wide slog logger.
package logger

import (
	"log/slog"
	"os"

	"github.com/storyweave/gamemaster/internal/config"
)

// Setup configures the global slog logger based on environment.
// Production logs JSON; development logs text.
func Setup(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithSessionID adds the session ID to logger context.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}
