// Package logging routes the standard logger to stderr and, when a file is
// configured, to a size-rotated log file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"trailerreel/config"
)

// Setup points the standard logger at the configured outputs. The returned
// closer flushes and closes the rotated file; it is a no-op without one.
func Setup(cfg config.LoggingSettings) io.Closer {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if cfg.FilePath == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("[logging] cannot create log dir, falling back to stderr: %v", err)
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 50),
		MaxBackups: positiveOr(cfg.MaxBackups, 5),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 14),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
