package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levels maps CLI verbosity 0-4 to zap levels, most severe first.
var levels = []zapcore.Level{
	zapcore.FatalLevel,
	zapcore.ErrorLevel,
	zapcore.WarnLevel,
	zapcore.InfoLevel,
	zapcore.DebugLevel,
}

// New creates a new zap logger for the given verbosity (0-4).
func New(verbosity int) (*zap.Logger, error) {
	if verbosity < 0 {
		verbosity = 0
	}
	if verbosity >= len(levels) {
		verbosity = len(levels) - 1
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.Level = zap.NewAtomicLevelAt(levels[verbosity])

	return cfg.Build()
}

// Must creates a logger or panics.
func Must(verbosity int) *zap.Logger {
	log, err := New(verbosity)
	if err != nil {
		panic(err)
	}
	return log
}
