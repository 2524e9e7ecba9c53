package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide JSON logger at the given level
// (debug, info, warn, error; anything else means info).
func NewLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	log := slog.New(handler).With(slog.String("service", "rentaladmin"))
	slog.SetDefault(log)
	return log
}

// ParseLevel maps a level name onto slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
