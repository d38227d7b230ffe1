// Package logging configures the process-wide zerolog logger with console
// output and rotated file output.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger settings.
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	FilePath   string `json:"file_path"`   // empty disables file output
	MaxSizeMB  int    `json:"max_size_mb"` // per rotated file
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
	Pretty     bool   `json:"pretty"` // console writer instead of raw JSON on stdout
}

// DefaultConfig returns sensible defaults for local runs.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "logs/engine.log",
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
		Pretty:     true,
	}
}

// New builds the root logger. Components derive their own via
// logger.With().Str("component", ...).Logger().
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	if cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}
