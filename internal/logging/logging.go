package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. dev selects the console encoder with
// caller and stacktrace output.
func New(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging.New: %w", err)
	}

	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// MustNew is New for main packages; an invalid level falls back to info.
func MustNew(level string, dev bool) *zap.Logger {
	logger, err := New(level, dev)
	if err == nil {
		return logger
	}
	logger, err = New("info", dev)
	if err != nil {
		panic(err)
	}
	logger.Warn("invalid log level, using info", zap.String("level", level))
	return logger
}
