// Package logger provides the structured logger shared by every gateway
// subsystem and by the real-time side's software simulator.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Log wraps a logrus entry so callers can chain .With(Fields{...}) without
// importing logrus directly.
type Log struct {
	*logrus.Entry
}

// New builds a logger writing to stdout at the given level ("debug", "info",
// "warn", "error").
func New(level string) (*Log, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		DisableColors:    false,
		ForceColors:      true,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	// Output is stdout only; no concurrent file handle to protect.
	log.SetNoLock()

	return &Log{Entry: log.WithFields(nil)}, nil
}

// With adds fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

// Module is shorthand for With(Fields{"module": name}).
func (l *Log) Module(name string) *Log {
	return l.With(Fields{"module": name})
}

// GetLevel returns the currently configured log level.
func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields is a formatted log field set.
type Fields map[string]interface{}

// Logger is the interface subsystems depend on, so tests can substitute a
// no-op implementation without pulling in logrus.
type Logger interface {
	GetLevel() string
	With(fields Fields) *Log
	Module(name string) *Log
}

// Nop returns a logger that discards everything, for use in unit tests that
// don't care about log output.
func Nop() *Log {
	log := logrus.New()
	log.SetOutput(noopWriter{})
	return &Log{Entry: log.WithFields(nil)}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
