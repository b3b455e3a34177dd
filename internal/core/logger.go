package core

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger whose level can be changed through the
// returned AtomicLevel.
func NewLogger(cfg *Config) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := SetLogLevel(level, cfg.App.LogLevel); err != nil {
		return nil, level, err
	}

	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "parley")), level, nil
}

// SetLogLevel parses name and applies it to level. An empty name means info.
func SetLogLevel(level zap.AtomicLevel, name string) error {
	if name == "" {
		name = "info"
	}
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(parsed)
	return nil
}
