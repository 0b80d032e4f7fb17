// Package log builds the zap-backed logr.Logger every component in
// this module takes as a constructor argument, and parses the level
// out of LINKERD_POLICY_CONTROLLER_LOG (spec.md §6.3).
package log

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap config at the given level and wraps it
// as a logr.Logger via zapr, the same pairing the teacher's dependency
// set (go-logr/zapr + go.uber.org/zap) is built for.
func New(level string) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Logger{}, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("building zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// ParseLevel maps LINKERD_POLICY_CONTROLLER_LOG's accepted values onto
// zapcore levels; unrecognized values fall back to info rather than
// erroring, since a bad env var should not prevent the controller from
// starting.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, nil
	}
}
