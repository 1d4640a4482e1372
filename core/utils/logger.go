package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger keeps the printf-style surface used across handlers and services on top of zap.
type Logger struct {
	z *zap.SugaredLogger
}

func NewLogger(level, env string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(env, "dev") || strings.EqualFold(env, "development") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{z: base.Sugar()}, nil
}

func NewNopLogger() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger, e.g. one from zaptest.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{z: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Infof(format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Debugf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil || l.z == nil {
		return
	}
	l.z.Errorf(format, args...)
}

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil || l.z == nil {
		return l
	}
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}
