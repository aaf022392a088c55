// Package logger builds the zap loggers used by the server and the CLI.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a logger flavoured for env:
//
//	prod                JSON lines
//	local, dev, docker  coloured console output
//	cli                 terse console output without caller or stack traces
//
// A non-empty level (debug, info, warn, error) replaces the flavour's default.
func NewLogger(env, level string) (*zap.Logger, error) {
	cfg, opts, err := preset(env)
	if err != nil {
		return nil, err
	}
	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func preset(env string) (zap.Config, []zap.Option, error) {
	switch env {
	case "prod":
		return zap.NewProductionConfig(), []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}, nil
	case "cli":
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.TimeKey = ""
		return cfg, nil, nil
	}
	return zap.Config{}, nil, fmt.Errorf("unknown environment %q for logger", env)
}
