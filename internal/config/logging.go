package config

import (
	"log/slog"
	"os"
)

// BuildLogger constructs the slog logger described by cfg. Unknown values
// fall back to info/text; Validate catches them before this runs.
func BuildLogger(cfg LoggingConfig) *slog.Logger {
	var lvl slog.Level
	switch cfg.Level {
	case LogDebug:
		lvl = slog.LevelDebug
	case LogWarn:
		lvl = slog.LevelWarn
	case LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
