// Package logger provides structured logging for the purchase layer.
// It is a thin wrapper over logrus so services can carry contextual
// fields without depending on the logging backend directly.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
	Output string // "stdout", "stderr"
}

// Logger wraps a logrus logger together with a set of contextual fields.
type Logger struct {
	backend *logrus.Logger
	fields  logrus.Fields
}

// New builds a logger from configuration.
func New(cfg LoggingConfig) *Logger {
	backend := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	backend.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		backend.SetFormatter(&logrus.JSONFormatter{})
	default:
		backend.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "stderr":
		backend.SetOutput(os.Stderr)
	default:
		backend.SetOutput(os.Stdout)
	}

	return &Logger{backend: backend, fields: logrus.Fields{}}
}

// NewDefault returns an info-level text logger tagged with a component name.
func NewDefault(name string) *Logger {
	log := New(LoggingConfig{Level: "info"})
	if name != "" {
		return log.WithField("component", name)
	}
	return log
}

// SetOutput redirects log output, primarily used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.backend.SetOutput(w)
}

// WithField returns a logger carrying an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.withFields(logrus.Fields{key: value})
}

// WithFields returns a logger carrying the additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.withFields(logrus.Fields(fields))
}

// WithError returns a logger carrying the error as a field.
func (l *Logger) WithError(err error) *Logger {
	return l.withFields(logrus.Fields{logrus.ErrorKey: err})
}

func (l *Logger) withFields(extra logrus.Fields) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &Logger{backend: l.backend, fields: merged}
}

func (l *Logger) entry() *logrus.Entry {
	return l.backend.WithFields(l.fields)
}

func (l *Logger) Debug(args ...interface{})                 { l.entry().Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry().Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.entry().Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry().Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.entry().Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry().Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.entry().Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry().Errorf(format, args...) }
