package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for capture files.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes an optional capture file for a service's relayed output.
// Children run with stderr merged into stdout, so a single file per service
// suffices. If Path is empty and Dir is set, the file is Dir/<name>.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `json:"dir" mapstructure:"dir"`   // base directory for capture files
	Path       string `json:"path" mapstructure:"path"` // explicit path overrides Dir
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"` // gzip rotated files
}

// Enabled reports whether the config names a capture destination at all.
func (c Config) Enabled() bool { return c.Dir != "" || c.Path != "" }

// Writer returns an io.WriteCloser capturing the combined output of the named
// service, or nil when capture is not configured.
func (c Config) Writer(name string) io.WriteCloser {
	path := c.Path
	if path == "" {
		if c.Dir == "" {
			return nil
		}
		path = filepath.Join(c.Dir, fmt.Sprintf("%s.log", name))
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// New builds the supervisor's own slog logger. Level prefixes are colored
// unless noColor is set.
func New(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if noColor {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(NewColorTextHandler(w, opts))
}

// Default returns a colored stderr logger at info level.
func Default() *slog.Logger {
	return New(os.Stderr, slog.LevelInfo, false)
}
