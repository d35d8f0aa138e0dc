package telemetry

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/phuslu/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *log.Logger {
	return &log.Logger{
		Level:      log.InfoLevel,
		TimeField:  "ts",
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: w},
	}
}

// SetOutput redirects log lines to w. Passing nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	logger = newLogger(w)
	mu.Unlock()
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(current().Info(), msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(current().Warn(), msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(current().Error(), msg, fields)
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func write(e *log.Entry, msg string, fields map[string]any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		e = e.Fields(log.Fields(fields))
	}
	e.Msg(msg)
}
