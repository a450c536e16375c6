package log

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var defaultLogger = newDefault()

func newDefault() *zap.Logger {
	l, err := New("info", "console")
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// New creates a zap logger.
// level is one of debug, info, warn, error.
// format is one of json, console.
func New(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log.New: unknown level %q: %w", level, err)
		}
	}
	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("log.New: unknown format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return cfg.Build()
}

// SetDefault replaces the logger returned by Logger when the context carries none
func SetDefault(l *zap.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// WithLogger returns a context carrying the given logger
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Logger returns the logger of the context, or the default logger
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return defaultLogger
}

// With returns a context whose logger carries an additional key/value field
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.Any(key, value)))
}

// Fatal logs the message with the default logger and exits
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Error(msg, fields...)
	_ = defaultLogger.Sync()
	os.Exit(1)
}
