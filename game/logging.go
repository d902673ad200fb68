package game

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pthm-cable/prowl/config"
)

// NewLogger builds a JSON logger at the configured level writing to w.
// When cfg.File is set, records also go to a rotating log file; the returned
// close function releases it.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("logging.level: %w", err)
		}
	}

	closeFn := func() error { return nil }
	if cfg.File != "" {
		// lumberjack handles rotation and serializes writes
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		if w == nil {
			w = file
		} else {
			w = io.MultiWriter(w, file)
		}
		closeFn = file.Close
	}
	if w == nil {
		w = io.Discard
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}
