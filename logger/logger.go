// Package logger builds the application's zap logger. Production config with
// ISO-8601 timestamps; callers derive named sub-loggers per component.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must is New for main(): panics instead of returning an error.
func Must() *zap.Logger {
	log, err := New()
	if err != nil {
		panic(err)
	}
	return log
}
