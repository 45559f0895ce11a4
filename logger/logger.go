// Package logger provides the small leveled-logging interface used
// across the fountain transport: a Logger accepts Debug/Info/Error
// calls and a StdLogger implementation gates them against a single
// runtime-adjustable level, so a long-running encode/decode can have
// its verbosity raised or lowered mid-stream (e.g. by a CLI signal
// handler) without tearing down and rebuilding the logger.
package logger

import (
	"log"
	"os"
)

const (
	LevelSilent = iota
	LevelError
	LevelInfo
	LevelDebug
)

// Logger is satisfied by *StdLogger and by any test double.
type Logger interface {
	Debug(v ...interface{})
	Debugf(f string, v ...interface{})
	Info(v ...interface{})
	Infof(f string, v ...interface{})
	Error(v ...interface{})
	Errorf(f string, v ...interface{})
}

var _ Logger = &StdLogger{}

// StdLogger writes every enabled level through a single underlying
// log.Logger, prefixing each line with its level tag. Unlike building
// one discard-or-not writer per level at construction time, the level
// check happens on every call against the Level field, so a caller
// holding a *StdLogger can raise or lower verbosity at any time by
// assigning to Level directly.
type StdLogger struct {
	Level int
	out   *log.Logger
}

// New creates a StdLogger at the given level with the given prefix.
func New(level int, prefix string) *StdLogger {
	return &StdLogger{
		Level: level,
		out:   log.New(os.Stderr, prefix, log.Ldate|log.Ltime),
	}
}

func (l *StdLogger) log(level int, tag string, v ...interface{}) {
	if l.Level < level {
		return
	}
	l.out.Println(append([]interface{}{tag}, v...)...)
}

func (l *StdLogger) logf(level int, tag, f string, v ...interface{}) {
	if l.Level < level {
		return
	}
	l.out.Printf(tag+f, v...)
}

func (l *StdLogger) Debug(v ...interface{})            { l.log(LevelDebug, "DEBUG:", v...) }
func (l *StdLogger) Debugf(f string, v ...interface{}) { l.logf(LevelDebug, "DEBUG: ", f, v...) }
func (l *StdLogger) Info(v ...interface{})             { l.log(LevelInfo, "INFO:", v...) }
func (l *StdLogger) Infof(f string, v ...interface{})  { l.logf(LevelInfo, "INFO: ", f, v...) }
func (l *StdLogger) Error(v ...interface{})            { l.log(LevelError, "ERROR:", v...) }
func (l *StdLogger) Errorf(f string, v ...interface{}) { l.logf(LevelError, "ERROR: ", f, v...) }

// Nop is a Logger that discards everything, the default for library
// consumers (including a WASM build) that never want stray stdio writes.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debug(v ...interface{})            {}
func (nopLogger) Debugf(f string, v ...interface{}) {}
func (nopLogger) Info(v ...interface{})             {}
func (nopLogger) Infof(f string, v ...interface{})  {}
func (nopLogger) Error(v ...interface{})            {}
func (nopLogger) Errorf(f string, v ...interface{}) {}
