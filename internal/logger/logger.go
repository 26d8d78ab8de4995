package logger

import (
	"io"
	"log/slog"
	"os"

	"docs-answer-bot/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitLoggerWithWriter(cfg, os.Stdout)
}

// InitLoggerWithWriter is InitLogger with an explicit destination.
func InitLoggerWithWriter(cfg *config.Config, w io.Writer) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts)).With("service", "docs-answer-bot")
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// L returns the configured logger, falling back to slog's default before InitLogger runs.
func L() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}
