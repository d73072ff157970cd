// Package logging builds the zap loggers used across the service and CLI.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModeRelease selects the production JSON encoder; every other mode gets the
// colored development console.
const ModeRelease = "release"

// New builds a logger for the given server mode.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == ModeRelease {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// Sync flushes buffered entries, ignoring the error stderr returns on some
// platforms.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
