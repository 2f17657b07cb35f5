// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the leveled error log used by every pursuer
// component. Output goes to a log file and, in line-mode front ends, is
// mirrored to stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level controls which messages are written.
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = map[string]Level{
	"off":   LevelOff,
	"error": LevelError,
	"warn":  LevelWarn,
	"info":  LevelInfo,
	"debug": LevelDebug,
}

// ParseLevel maps "off", "error", "warn", "info" and "debug" to a Level.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelWarn, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	for name, v := range levelNames {
		if v == l {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Logger is a leveled logger. All methods are safe for concurrent use and
// safe to call on a nil *Logger.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	debug  *log.Logger
	info   *log.Logger
	warn   *log.Logger
	errLog *log.Logger
	closer io.Closer
}

// New creates a logger writing to out. A nil out discards everything.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = io.Discard
	}
	flags := log.LstdFlags
	return &Logger{
		level:  level,
		debug:  log.New(out, "[DBG] ", flags),
		info:   log.New(out, "[INF] ", flags),
		warn:   log.New(out, "[WRN] ", flags),
		errLog: log.New(out, "[ERR] ", flags),
	}
}

// Nop returns a logger that writes nothing.
func Nop() *Logger {
	return New(LevelOff, nil)
}

// Open creates a logger appending to path. Warnings and errors are also
// copied to mirror when it is non-nil.
func Open(path string, level Level, mirror io.Writer) (*Logger, error) {
	if level == LevelOff {
		return Nop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(level, f)
	l.closer = f
	if mirror != nil {
		l.warn.SetOutput(io.MultiWriter(f, mirror))
		l.errLog.SetOutput(io.MultiWriter(f, mirror))
	}
	return l, nil
}

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelOff
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) output(min Level, dst *log.Logger, format string, args []any) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level >= min {
		dst.Output(3, fmt.Sprintf(format, args...))
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) {
	if l == nil {
		return
	}
	l.output(LevelDebug, l.debug, format, args)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.output(LevelInfo, l.info, format, args)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.output(LevelWarn, l.warn, format, args)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.output(LevelError, l.errLog, format, args)
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
