package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bigbag/lpc55-isp/internal/config"
)

// New returns a text logger writing to stderr, or to a rotating file when
// cfg.File is set. The returned closer releases the file.
func New(cfg config.LogConfig, verbose bool) (*slog.Logger, io.Closer) {
	var w io.WriteCloser = nopCloser{os.Stderr}
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}

	level := ParseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler), w
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
