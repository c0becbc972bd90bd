package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// fileLogger sends all logging to cfg.LogPath. The kiosk owns the terminal,
// so nothing may write to stdout or stderr while it runs.
func fileLogger(cfg appConfig) (zerolog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("opening log file: %w", err)
	}

	logger := newLogger(f, cfg.LogLevel)
	// Stray stdlib log output from dependencies lands in the same file.
	log.SetFlags(0)
	log.SetOutput(logger)

	return logger, func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// consoleLogger is used by the headless commands.
func consoleLogger(cfg appConfig) zerolog.Logger {
	return newLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, cfg.LogLevel)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
