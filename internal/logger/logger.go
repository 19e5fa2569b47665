package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for mirrored console logs.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the on-disk mirror of a server's captured console output.
// When Dir is empty no mirror is written and the in-memory buffer is the only
// destination. Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `json:"dir" mapstructure:"dir"`                   // base directory for console logs
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`   // megabytes before rotation (default 10)
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`   // number of backups to keep (default 3)
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"` // days to keep (default 7)
	Compress   bool   `json:"compress" mapstructure:"compress"`         // gzip rotated files
}

// ConsoleWriter returns a rotating WriteCloser for the named server's console
// mirror, or nil when no mirror is configured.
func (c Config) ConsoleWriter(name string) (io.WriteCloser, error) {
	if c.Dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return nil, err
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.console.log", name)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}, nil
}

// NewLogger builds the slog logger used by the daemon and CLI. When color is
// set the handler decorates levels with ANSI colors for interactive use.
func NewLogger(w io.Writer, level slog.Level, color bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if color {
		return slog.New(NewColorTextHandler(w, opts, true))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
