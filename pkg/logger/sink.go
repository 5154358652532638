package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewAppLogger builds the process-wide JSON logger at the configured level.
func NewAppLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// NewAuditSink opens the durable audit destination: an append-only JSON
// log file, one record per event. The sink is write-only; nothing ever
// reads it back through this process.
func NewAuditSink(path string) (*slog.Logger, func() error, error) {
	if path == "" {
		// No file target configured: mirror audit events to stdout.
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	sink := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return sink, f.Close, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
