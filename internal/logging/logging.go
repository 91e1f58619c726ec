package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON slog handler at the given level as the default logger.
func Setup(level string) *slog.Logger {
	return SetupWriter(os.Stdout, level)
}

func SetupWriter(w io.Writer, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values fall back to info.
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
