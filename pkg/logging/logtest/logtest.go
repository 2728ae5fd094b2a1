// Package logtest provides loggers that record their entries in memory so
// tests can assert on diagnostics.
package logtest

import (
	"bank-dashboard/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// New returns a logger that keeps every entry at or above level.
func New(level zapcore.Level) (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &logging.Logger{Logger: zap.New(core)}, logs
}
