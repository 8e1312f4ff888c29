// Package logging provides structured, JSON-formatted logging for the
// semcode core, built on log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the path to a rotating log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
}

// DefaultConfig logs to stderr only, at info level.
func DefaultConfig() Config {
	return Config{Level: "info", MaxSizeMB: 10, MaxFiles: 5}
}

// Setup builds a slog.Logger from cfg and returns a cleanup function that
// must be called (e.g. via defer) to flush and close any file writer.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.FilePath != "" {
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		output = io.MultiWriter(writer, os.Stderr)
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	return slog.New(handler), cleanup, nil
}

// SetupDefault installs a stderr logger as the process-wide default and
// returns a no-op cleanup (nothing to flush without a file sink).
func SetupDefault(level string) func() {
	cfg := DefaultConfig()
	cfg.Level = level
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		// stderr logging cannot fail to construct; fall back defensively.
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
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
