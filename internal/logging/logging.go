// Package logging provides the LeveledLogger interface shared by the Modbus
// server, the event emitter and the simulator.
//
// The interface is adapted from simonvetter-modbus/logger.go's
// LeveledLogger, which wrote prefixed lines straight to stdout/stderr; here
// it is backed by go.uber.org/zap's SugaredLogger, the structured-logging
// stack used across the retrieved corpus (EdgxCloud-EdgeFlow,
// xgr-network-xgr-node, n42blockchain-erigon2.7).
package logging

import (
	"go.uber.org/zap"
)

// LeveledLogger is the minimal logging surface every component depends on.
type LeveledLogger interface {
	Info(msg string)
	Infof(format string, args ...interface{})
	Warning(msg string)
	Warningf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	Fatal(msg string)
	Fatalf(format string, args ...interface{})
}

var _ LeveledLogger = (*zapLogger)(nil)

type zapLogger struct {
	s      *zap.SugaredLogger
	prefix string
}

// New wraps a *zap.Logger into a prefixed LeveledLogger, mirroring the
// "prefix:" convention of simonvetter-modbus's newLogger(prefix string).
func New(base *zap.Logger, prefix string) LeveledLogger {
	return &zapLogger{s: base.Sugar().Named(prefix), prefix: prefix}
}

// NewProduction builds a production zap.Logger (JSON encoding, info level)
// and wraps it with the given component prefix. Used by cmd/bottling-sim.
func NewProduction(prefix string) (LeveledLogger, *zap.Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	return New(base, prefix), base, nil
}

func (l *zapLogger) Info(msg string)                          { l.s.Info(msg) }
func (l *zapLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLogger) Warning(msg string)                        { l.s.Warn(msg) }
func (l *zapLogger) Warningf(format string, args ...interface{}) {
	l.s.Warnf(format, args...)
}
func (l *zapLogger) Error(msg string)                         { l.s.Error(msg) }
func (l *zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l *zapLogger) Fatal(msg string)                          { l.s.Fatal(msg) }
func (l *zapLogger) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }
