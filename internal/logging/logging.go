// Package logging provides the structured-logging seam used across the
// pipeline. The Logger interface matches the shape the orchestrator
// package has always depended on; New wires it to zap with rotation
// instead of leaving it a no-op in production.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}
func (n NoOpLogger) With(...interface{}) Logger { return n }

type zapLogger struct {
	l *zap.SugaredLogger
}

// New builds a zap-backed Logger that writes to path, rotated by
// lumberjack once it exceeds maxSizeMB. debug enables debug-level output
// on top of info+.
func New(path string, maxSizeMB, maxBackups int, debug bool) (Logger, func() error, error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     28,
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(rotator),
		level,
	)

	base := zap.New(core, zap.AddCaller())
	l := &zapLogger{l: base.Sugar()}
	return l, rotator.Close, nil
}

func (z *zapLogger) Debug(msg string, args ...interface{}) { z.l.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...interface{})  { z.l.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...interface{})  { z.l.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...interface{}) { z.l.Errorw(msg, args...) }

func (z *zapLogger) With(args ...interface{}) Logger {
	return &zapLogger{l: z.l.With(args...)}
}
