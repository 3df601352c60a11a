// Package logger provides structured logging for Probe Doctor using Logrus.
// A single process-wide logger is shared by all components; monitors and
// exporters attach context through WithFields.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log *logrus.Logger
	mu  sync.RWMutex

	// logFile holds the open file handle when logging to a file so it can
	// be closed on shutdown or re-initialization.
	logFile io.Closer
)

func init() {
	log = logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// Initialize configures the global logger. It is safe to call more than
// once; a previously opened log file is closed before the new one is used.
//
//   - level:  debug, info, warn, error, fatal
//   - format: json or text
//   - output: stdout, stderr, or file
//   - file:   path of the log file when output is "file"
func Initialize(level, format, output, file string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close previous log file: %v\n", err)
		}
		logFile = nil
	}

	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", format)
	}

	switch output {
	case "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if file == "" {
			return fmt.Errorf("logFile must be set when logOutput is 'file'")
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", file, err)
		}
		logFile = f
		l.SetOutput(f)
	default:
		return fmt.Errorf("invalid log output %q: must be stdout, stderr, or file", output)
	}

	log = l
	return nil
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// WithFields returns an entry with structured context fields, e.g.:
//
//	logger.WithFields(logrus.Fields{
//	    "component": "tailer",
//	    "path":      cfg.Path,
//	}).Debug("poll cycle complete")
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}

// WithField returns an entry with a single structured field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithError returns an entry with an error field.
func WithError(err error) *logrus.Entry {
	return Get().WithError(err)
}

// Debugf logs a formatted message at level Debug.
func Debugf(format string, args ...interface{}) {
	Get().Debugf(format, args...)
}

// Infof logs a formatted message at level Info.
func Infof(format string, args ...interface{}) {
	Get().Infof(format, args...)
}

// Warnf logs a formatted message at level Warn.
func Warnf(format string, args ...interface{}) {
	Get().Warnf(format, args...)
}

// Errorf logs a formatted message at level Error.
func Errorf(format string, args ...interface{}) {
	Get().Errorf(format, args...)
}

// Fatalf logs a formatted message at level Fatal then exits.
func Fatalf(format string, args ...interface{}) {
	Get().Fatalf(format, args...)
}

// SetLevel changes the log level of the global logger.
func SetLevel(level logrus.Level) {
	Get().SetLevel(level)
}

// Close closes the log file if one is open. Safe to call multiple times.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}
