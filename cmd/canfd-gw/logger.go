package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/rahul91115/canfd-eth-gateway/internal/logging"
)

func setupLogger(cfg *appConfig) *slog.Logger {
	var lvl slog.Level
	switch cfg.logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	if cfg.logFile != "" {
		w = logging.RotatingWriter(cfg.logFile, 20, 5, 28)
	}
	l := logging.New(cfg.logFormat, lvl, w).With("app", "canfd-gw")
	logging.Set(l)
	return l
}
