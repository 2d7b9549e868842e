// Package logging builds the process zap logger and adapts it to the
// Temporal SDK's log.Logger interface.
package logging

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development logger when verbose is set and a production
// logger otherwise.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must is like New but falls back to a no-op logger on error.
func Must(verbose bool) *zap.Logger {
	logger, err := New(verbose)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// TemporalLogger adapts a zap logger to log.Logger.
type TemporalLogger struct {
	zl *zap.SugaredLogger
}

var (
	_ log.Logger     = (*TemporalLogger)(nil)
	_ log.WithLogger = (*TemporalLogger)(nil)
)

// NewTemporalLogger wraps zl for use as client.Options.Logger.
func NewTemporalLogger(zl *zap.Logger) *TemporalLogger {
	return &TemporalLogger{zl: zl.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.zl.Debugw(msg, normalize(keyvals)...)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.zl.Infow(msg, normalize(keyvals)...)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.zl.Warnw(msg, normalize(keyvals)...)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.zl.Errorw(msg, normalize(keyvals)...)
}

// With returns a logger with keyvals attached to every entry.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{zl: l.zl.With(normalize(keyvals)...)}
}

// normalize makes keyvals safe for zap's sugared API: keys are stringified
// and a dangling key gets an empty value.
func normalize(keyvals []interface{}) []interface{} {
	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, "")
	}
	out := make([]interface{}, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		out[i] = key
		out[i+1] = keyvals[i+1]
	}
	return out
}
