// Package logger provides the append-only diagnostic sink used by the
// kollzsh CLI. The sink is opened once at process start and closed at exit.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// TimeFormat stamps every diagnostic line.
const TimeFormat = "2006-01-02 15:04:05"

// Sink is a structured logger writing to an append-only file.
type Sink struct {
	*log.Logger
	file *os.File
}

// Open appends diagnostics to path at the given level (debug|info|warn|error).
// An empty path yields a sink that discards everything.
func Open(path, level string) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return Discard(), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	return &Sink{Logger: newLogger(file, level), file: file}, nil
}

// Discard returns a sink that drops every message.
func Discard() *Sink {
	return &Sink{Logger: newLogger(io.Discard, "error")}
}

// New wraps an arbitrary writer; used by tests and by callers that own the
// writer's lifecycle.
func New(w io.Writer, level string) *Sink {
	return &Sink{Logger: newLogger(w, level)}
}

// Close flushes and closes the underlying file, if any. It is safe to call
// on a nil or discard sink.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newLogger(w io.Writer, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Level:           parseLogLevel(level),
	})
	return l
}

// parseLogLevel converts string to log level. The sink exists for debugging,
// so unknown or empty levels mean debug.
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.DebugLevel
	}
}
