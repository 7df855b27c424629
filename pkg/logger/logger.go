// Package logger provides structured logging for the relay layer services.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry with service-layer conventions. Loggers are
// immutable; WithField and WithError return derived loggers.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the given component at the given level.
func New(component string, level logrus.Level) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: base.WithField("component", component)}
}

// NewDefault creates a logger for the given component using the level from
// RELAY_LOG_LEVEL (info when unset or unparseable).
func NewDefault(component string) *Logger {
	level := logrus.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("RELAY_LOG_LEVEL")); raw != "" {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	return New(component, level)
}

// WithField returns a logger with the field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// SetOutput redirects the underlying logger output. Used by tests to silence
// or capture log lines.
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
