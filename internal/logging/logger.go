// Package logging provides the structured logger used across every
// shootcoach component, wrapping logrus the same way the rest of the
// fleet does rather than introducing a second logging convention.
package logging

import (
	"github.com/sirupsen/logrus"

	"shootcoach/internal/config"
)

// Logger is the shared logger type. Components accept this type rather
// than a package-global logger so tests can inject an isolated instance.
type Logger = *logrus.Logger

// Fields is structured key/value context attached to a log entry.
type Fields = logrus.Fields

const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

// NewLogger creates a logger configured from the environment.
func NewLogger() Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithComponent returns a logger configured like NewLogger. The
// component name is not attached to its entries: only the entry's
// underlying Logger is returned, without the "component" field.
func NewLoggerWithComponent(component string) Logger {
	logger := NewLogger()
	return logger.WithField("component", component).Logger
}
