// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package aurcorlog is a small wrapper around the standard log package,
// the way host.go and cmd/led/main.go log in the teacher: plain
// *log.Logger, no third-party logging dependency. It adds the named
// level table from the script-facing ulogging module (spec.md §6) and
// Python logging-module-style effective-level inheritance, since the
// original firmware's ulogging.cpp implements the same walk-up-to-parent
// behavior.
package aurcorlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level mirrors ulogging's level table: higher is more severe, same
// polarity as Python's logging module that the script-facing API mimics.
type Level int

const (
	NOTSET Level = 0
	TRACE  Level = 5
	DEBUG  Level = 10
	INFO   Level = 20
	NOTICE Level = 25
	WARNING Level = 30
	ERROR  Level = 40
	CRITICAL Level = 50
	ALERT  Level = 60
	EMERG  Level = 70
	OFF    Level = 10000
)

var levelNames = map[Level]string{
	NOTSET: "NOTSET", TRACE: "TRACE", DEBUG: "DEBUG", INFO: "INFO",
	NOTICE: "NOTICE", WARNING: "WARNING", ERROR: "ERROR",
	CRITICAL: "CRITICAL", ALERT: "ALERT", EMERG: "EMERG", OFF: "OFF",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL%d", int(l))
}

// Logger is a named logger with an optional parent, matching ulogging's
// hierarchy: a logger with NOTSET effective level defers to its parent.
type Logger struct {
	name   string
	parent *Logger

	mu       sync.Mutex
	level    Level
	disabled bool

	out *log.Logger
}

var root = &Logger{name: "root", level: WARNING, out: log.New(os.Stderr, "", log.LstdFlags)}

// New returns a named child logger. If parent is nil the root logger
// (default level WARNING) is used, matching ulogging's default.
func New(name string, parent *Logger) *Logger {
	if parent == nil {
		parent = root
	}
	return &Logger{name: name, parent: parent, level: NOTSET, out: parent.out}
}

// SetLevel sets this logger's own level; NOTSET (0) means "inherit from
// parent", as in ulogging/Python logging.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Disable sets a floor level: this logger and descendants that haven't
// set a level of their own ignore anything below it. Mirrors
// ulogging's disable(), which is implemented as a global floor in the
// original; here it is per-subtree to support multiple interpreter tasks
// logging independently.
func (l *Logger) Disable(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = true
	l.level = level
}

// GetEffectiveLevel walks up the parent chain until a non-NOTSET level is
// found, returning NOTSET if none ever was (meaning "log everything").
func (l *Logger) GetEffectiveLevel() Level {
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		lvl := cur.level
		cur.mu.Unlock()
		if lvl != NOTSET {
			return lvl
		}
	}
	return NOTSET
}

// IsEnabledFor reports whether a message at level would be emitted.
func (l *Logger) IsEnabledFor(level Level) bool {
	return level >= l.GetEffectiveLevel()
}

// Log emits a formatted message at level if enabled.
func (l *Logger) Log(level Level, format string, args ...interface{}) {
	if !l.IsEnabledFor(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] %s: %s", level, l.name, msg)
}

func (l *Logger) Emerg(format string, args ...interface{})    { l.Log(EMERG, format, args...) }
func (l *Logger) Alert(format string, args ...interface{})    { l.Log(ALERT, format, args...) }
func (l *Logger) Critical(format string, args ...interface{}) { l.Log(CRITICAL, format, args...) }
func (l *Logger) Error(format string, args ...interface{})    { l.Log(ERROR, format, args...) }
func (l *Logger) Warning(format string, args ...interface{})  { l.Log(WARNING, format, args...) }
func (l *Logger) Notice(format string, args ...interface{})   { l.Log(NOTICE, format, args...) }
func (l *Logger) Info(format string, args ...interface{})     { l.Log(INFO, format, args...) }
func (l *Logger) Debug(format string, args ...interface{})    { l.Log(DEBUG, format, args...) }
func (l *Logger) Trace(format string, args ...interface{})    { l.Log(TRACE, format, args...) }

// Exception logs at NOTICE with the error appended, the way mp_print.cpp
// redirects an uncaught script exception traceback into the logger
// instead of a bare stdout write.
func (l *Logger) Exception(context string, err error) {
	l.Log(NOTICE, "%s: %v", context, err)
}

// ParseLevelName parses one of the named levels case-insensitively,
// returning NOTSET and false if unrecognised.
func ParseLevelName(name string) (Level, bool) {
	upper := strings.ToUpper(name)
	for lvl, n := range levelNames {
		if n == upper {
			return lvl, true
		}
	}
	return NOTSET, false
}
