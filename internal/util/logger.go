package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "pokemart"

var logger *zap.Logger

// InitLogger builds the process-wide logger: JSON in production,
// colored console everywhere else. Every entry carries the service
// name so aggregated logs stay attributable.
func InitLogger(env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := cfg.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return err
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger. Before InitLogger has run
// (tests, early init) it falls back to a development logger.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes any buffered entries on shutdown.
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
