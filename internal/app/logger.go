package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the configured slog.Logger. Production deployments set
// LOG_FORMAT=json; anything else falls back to the text handler.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With(slog.String("service", "meridian"))
	if cfg != nil && cfg.InstanceID != "" {
		logger = logger.With(slog.String("instance", cfg.InstanceID))
	}
	return logger
}
