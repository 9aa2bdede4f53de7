// Package logging wraps charmbracelet/log with the leveled calls the
// error-handling design names directly: transient per-frame errors and
// recoverable transport errors are LOG_ERR/LOG_WARNING respectively, never
// fatal to the worker that hits them.
package logging

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	once    sync.Once
	base    *log.Logger
)

func root() *log.Logger {
	once.Do(func() {
		base = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			ReportCaller:    false,
		})
	})
	return base
}

// Logger is a named component logger (one per worker, e.g. "mux",
// "output.udp.3", "encoder.video").
type Logger struct {
	l *log.Logger
}

// For returns a component-scoped Logger.
func For(component string) Logger {
	return Logger{l: root().With("component", component)}
}

// Debug logs at debug level.
func (lg Logger) Debug(msg string, kv ...interface{}) { lg.l.Debug(msg, kv...) }

// Info logs at info level.
func (lg Logger) Info(msg string, kv ...interface{}) { lg.l.Info(msg, kv...) }

// Warn is LOG_WARNING: recoverable transport/drift conditions. The frame
// or packet is dropped; the pipeline continues.
func (lg Logger) Warn(msg string, kv ...interface{}) { lg.l.Warn(msg, kv...) }

// Error is LOG_ERR: transient per-frame failures (codec reject, VBI
// decode failure, malformed ancillary). The frame is dropped.
func (lg Logger) Error(msg string, kv ...interface{}) { lg.l.Error(msg, kv...) }

// Fatal logs at error level and is reserved for the fatal-startup class;
// callers still return an error rather than exiting the process, so this
// never calls os.Exit.
func (lg Logger) Fatal(msg string, kv ...interface{}) { lg.l.Error(msg, kv...) }
