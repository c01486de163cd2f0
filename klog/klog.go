// Package klog is a thin leveled wrapper around the standard library's
// log package. No repo in the reference corpus carries a logging
// dependency suited to a single-process kernel simulator's console-style
// trace output (bare-metal kernels print to a boot console instead), so
// this is the one ambient concern built on the standard library rather
// than a third-party package; see DESIGN.md.
package klog

import (
	"io"
	"log"
	"os"
)

// Level orders verbosity; a Logger drops any call below its configured
// level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger writes leveled, prefixed lines to an underlying *log.Logger.
type Logger struct {
	min   Level
	inner *log.Logger
}

// New constructs a Logger writing to w at the standard log flags,
// suppressing anything below min.
func New(w io.Writer, min Level) *Logger {
	return &Logger{min: min, inner: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

// Default returns a Logger writing to stderr at LevelInfo, the
// configuration cmd/kerneld starts with absent a -log-level flag.
func Default() *Logger { return New(os.Stderr, LevelInfo) }

func (l *Logger) log(lvl Level, format string, args []interface{}) {
	if lvl < l.min {
		return
	}
	l.inner.Printf("["+lvl.String()+"] "+format, args...)
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args) }

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args) }

// SetLevel adjusts the minimum level a running Logger emits.
func (l *Logger) SetLevel(min Level) { l.min = min }
