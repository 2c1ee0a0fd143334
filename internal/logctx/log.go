// Package logctx provides the leveled, swappable logging facade used by
// every mylogger component. It generalizes the teacher's log package
// (github.com/grailbio/base/log) to this repo: an Outputter interface
// wraps Go's standard log package by default, and components that cannot
// propagate an error to their caller (the hot ingest path, the flusher, the
// retention sweep) report diagnostics through here instead of panicking.
package logctx

import (
	"fmt"
	golog "log"
	"os"
)

// Level is a log verbosity level. Higher levels are more verbose.
type Level int

const (
	// Off disables all output.
	Off Level = -1
	// Error logs only errors.
	Error Level = 0
	// Info logs informational messages and errors.
	Info Level = 1
	// Debug logs everything, including hot-path diagnostics.
	Debug Level = 2
)

// Outputter receives formatted log lines at a given level.
type Outputter interface {
	Level() Level
	Output(level Level, s string) error
}

type stdOutputter struct {
	level  Level
	logger *golog.Logger
}

func (o *stdOutputter) Level() Level { return o.level }

func (o *stdOutputter) Output(level Level, s string) error {
	if level > o.level {
		return nil
	}
	return o.logger.Output(3, s)
}

var out Outputter = &stdOutputter{level: Info, logger: golog.New(os.Stderr, "", golog.LstdFlags)}

// SetOutputter installs a new Outputter, returning the previous one.
// Not safe to call concurrently with logging output; call during startup.
func SetOutputter(o Outputter) Outputter {
	old := out
	out = o
	return old
}

// SetLevel adjusts the verbosity of the default outputter in place when
// it is the standard one; otherwise it is a no-op.
func SetLevel(level Level) {
	if o, ok := out.(*stdOutputter); ok {
		o.level = level
	}
}

// At reports whether level would currently be emitted.
func At(level Level) bool { return level <= out.Level() }

func emit(level Level, format string, args []interface{}) {
	if !At(level) {
		return
	}
	s := format
	if len(args) > 0 {
		s = fmt.Sprintf(format, args...)
	}
	_ = out.Output(level, s)
}

// Errorf logs a formatted message at Error level.
func Errorf(format string, args ...interface{}) { emit(Error, format, args) }

// Infof logs a formatted message at Info level.
func Infof(format string, args ...interface{}) { emit(Info, format, args) }

// Debugf logs a formatted message at Debug level.
func Debugf(format string, args ...interface{}) { emit(Debug, format, args) }
