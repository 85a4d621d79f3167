package logger

import (
	"go.uber.org/zap"
)

// Log is the package level logger. It is a no-op until Initialize is called.
var Log *zap.Logger = zap.NewNop()

// Initialize builds the production logger with the given level
// and installs it as the package level logger.
func Initialize(level string) (*zap.Logger, error) {
	loggerLvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	loggerCfg := zap.NewProductionConfig()
	loggerCfg.Level = loggerLvl

	logger, err := loggerCfg.Build()
	if err != nil {
		return nil, err
	}

	Log = logger

	return logger, nil
}
