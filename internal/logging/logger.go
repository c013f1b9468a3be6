// Package logging constructs the service-wide zap logger. The clip
// pipeline and HTTP layer both log through it; development mode trades
// JSON output for colored console lines.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the root logger. Development mode emits colored console
// output; production emits JSON with stacktraces kept on errors so
// failed clips can be traced after the fact.
func New(development bool) (*zap.Logger, error) {
	cfg := productionConfig()
	if development {
		cfg = developmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func developmentConfig() zap.Config {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func productionConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
