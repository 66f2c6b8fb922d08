package config

import (
    "log/slog"
    "os"
    "strings"
)

// NewLogger returns the process logger: JSON lines in production, text in
// development.  LOG_LEVEL (debug, info, warn, error) overrides the default
// of info.
func NewLogger(env string) *slog.Logger {
    opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}
    var h slog.Handler
    switch strings.ToLower(env) {
    case "prod", "production":
        h = slog.NewJSONHandler(os.Stdout, opts)
    default:
        h = slog.NewTextHandler(os.Stdout, opts)
    }
    return slog.New(h)
}

func parseLevel(s string) slog.Level {
    switch strings.ToLower(s) {
    case "debug":
        return slog.LevelDebug
    case "warn":
        return slog.LevelWarn
    case "error":
        return slog.LevelError
    }
    return slog.LevelInfo
}
