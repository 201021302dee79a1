package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/httplog/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the JSON slog logger. Output always goes to stdout and,
// when LOG_FILE is set, to a size-rotated file as well.
func NewLogger(cfg LogConfig) *slog.Logger {
	return slog.New(NewLogHandler(cfg, os.Stdout)).With(slog.String("service", "motivation-engine"))
}

// NewLogHandler writes ECS-formatted JSON to stdout plus the optional
// rotated file, so application and request logs share one schema.
func NewLogHandler(cfg LogConfig, stdout io.Writer) slog.Handler {
	w := stdout
	if cfg.File != "" {
		w = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: logFormat.ReplaceAttr,
	})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
