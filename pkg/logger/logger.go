package logger

import (
	"strings"

	"github.com/tamzid2001/docuflux/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppLogger implements the domain.Logger interface on top of zap
type AppLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new JSON logger writing to stdout at the given level
func NewLogger(levelStr string) domain.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(levelStr))
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &AppLogger{sugar: base.Sugar()}
}

// NewFromZap wraps an existing zap logger
func NewFromZap(l *zap.Logger) domain.Logger {
	return &AppLogger{sugar: l.Sugar()}
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	l.sugar.Infow(msg, fields...)
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	l.sugar.Errorw(msg, append([]interface{}{zap.Error(err)}, fields...)...)
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	l.sugar.Debugw(msg, fields...)
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, fields...)
}

// Sync flushes buffered entries
func (l *AppLogger) Sync() error {
	return l.sugar.Sync()
}

// parseLogLevel converts string log level to a zap level
func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
