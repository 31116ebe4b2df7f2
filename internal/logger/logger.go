// Package logger builds the zap loggers of the binaries.
package logger

import (
	"go.uber.org/zap"
)

// Log is the process logger used by background loops. It is a no-op until Initialize.
var Log = zap.NewNop()

// New creates logger with log level
func New(level string) (*zap.Logger, error) {
	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	return loggerCfg.Build()
}

// Initialize creates logger with log level and makes it the process logger
func Initialize(level string) (*zap.Logger, error) {
	l, err := New(level)
	if err != nil {
		return nil, err
	}
	Log = l

	return l, nil
}
