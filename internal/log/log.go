// Package log provides a structured logging wrapper around logrus.
package log

import (
	"io"
	"os"

	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger for dependency injection
type Logger struct {
	log *logrus.Logger
}

// New creates a logger writing text lines to stdout.
// The initial level comes from LOG_LEVEL and defaults to info.
func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a logger writing to w
func NewWithOutput(w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     w == os.Stdout,
	})

	level, ok := parseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &Logger{log: l}
}

// parseLevel maps a level name to a logrus level. fatal and panic are accepted
// so that noisy deployments can silence everything but crashes.
func parseLevel(name string) (logrus.Level, bool) {
	switch name {
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "fatal":
		return logrus.FatalLevel, true
	case "panic":
		return logrus.PanicLevel, true
	default:
		return logrus.InfoLevel, false
	}
}

// ValidLevel reports whether name is a level SetLevel understands
func ValidLevel(name string) bool {
	_, ok := parseLevel(name)
	return ok
}

// SetLevel changes the level; unknown names leave it untouched
func (l *Logger) SetLevel(name string) {
	if level, ok := parseLevel(name); ok {
		l.log.SetLevel(level)
	}
}

// GetLogrus returns the underlying logrus instance
func (l *Logger) GetLogrus() *logrus.Logger {
	return l.log
}

// Trace logs trace-level messages
func (l *Logger) Trace(format string, v ...interface{}) {
	l.log.Tracef(format, v...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.log.WithFields(fields).Debugf(format, v...)
}

// Info logs informational messages
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.log.WithFields(fields).Infof(format, v...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// WarnWithFields logs a warning with structured fields
func (l *Logger) WarnWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.log.WithFields(fields).Warnf(format, v...)
}

// Error logs error messages
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// ErrorWithFields logs an error with structured fields
func (l *Logger) ErrorWithFields(fields logrus.Fields, format string, v ...interface{}) {
	l.log.WithFields(fields).Errorf(format, v...)
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

// WithField creates an entry with one structured field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.log.WithField(key, value)
}

// WithFields creates an entry with structured fields
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// WithPayload creates an entry describing p: kind, size and ack_id when set.
// The content itself is never logged.
func (l *Logger) WithPayload(p payload.Payload) *logrus.Entry {
	fields := PayloadFields(p)
	return l.log.WithFields(fields)
}

// PayloadFields returns the log fields for p
func PayloadFields(p payload.Payload) logrus.Fields {
	fields := logrus.Fields{
		"kind": p.Kind().String(),
		"size": p.Data().Len(),
	}
	if id, ok := p.AckID(); ok {
		fields["ack_id"] = id
	}
	return fields
}
