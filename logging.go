package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// defaultLogFile is where logs go when log.file is not set; the terminal belongs to the UI
func defaultLogFile() string {
	stateHome := xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
	if stateHome == "" {
		return ""
	}
	return filepath.Join(stateHome, "melscale", "melscale.log")
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// setupLogging installs a file-backed slog default logger and returns it with the file to close on exit
func setupLogging(cfg Config, debug bool) (*slog.Logger, io.Closer, error) {
	level := parseLogLevel(cfg.Log.Level)
	if debug {
		level = slog.LevelDebug
	}

	path := cfg.Log.File
	if path == "" {
		path = defaultLogFile()
	}
	if path == "" {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		slog.SetDefault(logger)
		return logger, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, f, nil
}
