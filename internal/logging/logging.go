package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ParseLevel maps the configured level name onto a logrus level.
// Unknown names fall back to info.
func ParseLevel(name string) logrus.Level {
	switch name {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds the process logger. Debug mode switches to a human readable
// text format and forces the debug level.
func New(level string, debug bool, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(out)

	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		return logger
	}

	logger.SetLevel(ParseLevel(level))
	logger.SetFormatter(&logrus.JSONFormatter{})

	return logger
}

// Discard returns a logger that drops everything; handy for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}
