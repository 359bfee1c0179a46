// Package logging builds the zap logger used for human-readable output.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerOption struct {
	LogLevel string
	Name     string
}

type Option func(o *LoggerOption)

func WithLogLevel(logLevel string) Option {
	return func(o *LoggerOption) {
		o.LogLevel = logLevel
	}
}

// WithName names the logger, usually after the daemon name.
func WithName(name string) Option {
	return func(o *LoggerOption) {
		o.Name = name
	}
}

// NewLogger creates a production logger writing JSON to stderr.
func NewLogger(opts ...Option) (*zap.Logger, error) {
	option := &LoggerOption{}
	for _, opt := range opts {
		opt(option)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(option.LogLevel))
	zapConfig.Sampling = nil

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	if option.Name != "" {
		logger = logger.Named(option.Name)
	}

	return logger, nil
}

// ParseLevel parses a log level name. Unknown names are treated as info.
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
