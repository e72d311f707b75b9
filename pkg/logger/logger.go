// Package logger wraps logrus with the component-scoped conventions used across
// the choperia services.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls logger construction.
type Config struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Component string `yaml:"-"`
	Output    io.Writer
}

// Logger is a component-scoped logrus entry.
type Logger struct {
	*logrus.Entry
	base *logrus.Logger
}

// New builds a logger from cfg. Unknown levels fall back to info, unknown
// formats to text.
func New(cfg Config) *Logger {
	base := logrus.New()
	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logrus.NewEntry(base)
	if cfg.Component != "" {
		entry = entry.WithField("component", cfg.Component)
	}
	return &Logger{Entry: entry, base: base}
}

// NewDefault returns an info-level text logger tagged with component.
// LOG_LEVEL and LOG_FORMAT are honoured when set.
func NewDefault(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: component,
	})
}

// Named returns a child logger sharing the same output but tagged with a new
// component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Entry: logrus.NewEntry(l.base).WithField("component", component), base: l.base}
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value), base: l.base}
}

// WithFields returns a logger with the additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields)), base: l.base}
}

// WithError returns a logger carrying err under the standard error key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err), base: l.base}
}

// SetOutput redirects the underlying logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// SetLevel changes the level of the underlying logger.
func (l *Logger) SetLevel(level string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.base.SetLevel(parsed)
	}
}
