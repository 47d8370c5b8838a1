package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a named zap logger. Verbose switches to the
// development config with debug-level output for --verbose runs;
// otherwise only warnings and errors reach the terminal so structured
// logs do not drown the printer output.
func NewLogger(name string, verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	return logger.Named(name)
}
