package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/baharkarakas/webpool/internal/config"
)

func New(env string) *slog.Logger {
	return newWithWriter(env, os.Stdout)
}

// FromConfig writes to cfg.LogFile through a rotating writer when it is set,
// and to stdout otherwise. The returned closer releases the log file.
func FromConfig(cfg config.Config) (*slog.Logger, io.Closer) {
	if cfg.LogFile == "" {
		return New(cfg.Env), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}
	return newWithWriter(cfg.Env, lj), lj
}

func newWithWriter(env string, w io.Writer) *slog.Logger {
	var h slog.Handler
	if env == "prod" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(h)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
