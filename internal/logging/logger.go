// Package logging provides the structured logger used across mediacore's
// decoders, demuxers, and the probe CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Config controls logger construction. It is populated from the CLI's viper
// config (see internal/config) and is never consulted by codec/demux
// packages directly — they only ever receive a *slog.Logger.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// GlobalLevel is the shared log level, changeable at runtime.
var GlobalLevel = &slog.LevelVar{}

// New creates a logger writing to stdout per cfg.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger writing to w, useful for tests.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	GlobalLevel.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     GlobalLevel,
		AddSource: cfg.AddSource,
	}
	if cfg.TimeFormat != "" {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(interface{ Format(string) string }); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "trace":
		return slog.LevelDebug - 4
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

// SetLevel changes the global log level at runtime.
func SetLevel(level string) {
	GlobalLevel.Set(parseLevel(level))
}

// WithComponent tags a logger with the subsystem emitting through it, e.g.
// "codec.h264" or "demux.mkv".
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

type loggerKey struct{}

// ContextWithLogger stashes a logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves the stashed logger, or slog.Default() if absent.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Discard returns a logger that drops everything, used as the zero-value
// default inside decoders/demuxers that weren't given one explicitly.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
