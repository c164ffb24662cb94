// Package logging provides the logrus-backed Logger the core's decode
// failures and lifecycle events are reported through.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger satisfies the core's leveled log sink: (level, component,
// message). Component is attached as a structured field rather than
// interpolated into the message, matching logrus's field-based idiom.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to out at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json").
func New(level, format string, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)

	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	return &Logger{entry: logrus.NewEntry(base)}
}

// NewDefault builds a Logger at info level writing text to stderr.
func NewDefault() *Logger {
	return New("info", "text", os.Stderr)
}

// Info logs a message tagged with component at info level.
func (l *Logger) Info(component, message string) {
	l.entry.WithField("component", component).Info(message)
}

// Warn logs a message tagged with component at warn level.
func (l *Logger) Warn(component, message string) {
	l.entry.WithField("component", component).Warn(message)
}

// Error logs a message tagged with component at error level.
func (l *Logger) Error(component, message string) {
	l.entry.WithField("component", component).Error(message)
}

// Debug logs a message tagged with component at debug level.
func (l *Logger) Debug(component, message string) {
	l.entry.WithField("component", component).Debug(message)
}

// NopLogger discards every call. Used in tests and anywhere a caller needs
// a Logger but doesn't care about its output.
type NopLogger struct{}

func (NopLogger) Info(component, message string)  {}
func (NopLogger) Warn(component, message string)  {}
func (NopLogger) Error(component, message string) {}
func (NopLogger) Debug(component, message string) {}
