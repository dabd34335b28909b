// Package logs implements the small leveled-logging backend that every
// subsystem of the engine logs through. It mirrors the backend/writer split
// used throughout the daglabs/kaspad lineage: a Backend multiplexes onto one
// or more BackendWriters (stdout, rotated file, error-only rotated file) and
// hands out per-subsystem *Logger values that share that backend.
package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level is a logging priority.
type Level uint32

// Priority levels, lowest to highest.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "UNK"
}

// LevelFromString parses a case-insensitive level name. It returns
// LevelInfo and false when the name is not recognized, matching the
// "default to info on bad input" behavior call sites rely on.
func LevelFromString(s string) (l Level, ok bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	default:
		return LevelInfo, false
	}
}

// BackendWriter is a sink a Backend writes formatted log lines into. Each
// writer declares the minimum level it wants to receive, so a single logical
// log statement can be routed to an all-levels writer and, independently, to
// an errors-only writer without the call site knowing about either.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter wraps w so every level reaches it.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter wraps w so only LevelError and above reach it.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend multiplexes formatted log lines to its writers and hands out
// per-subsystem Loggers that all share it.
type Backend struct {
	mtx     sync.Mutex
	writers []*BackendWriter
}

// NewBackend creates a Backend over the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger returns a new Logger for the given subsystem tag, defaulting to
// LevelInfo until SetLevel is called.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{
		backend: b,
		tag:     subsystemTag,
		level:   LevelInfo,
	}
}

// Close flushes and closes every writer that implements io.Closer.
func (b *Backend) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	var firstErr error
	for _, bw := range b.writers {
		if c, ok := bw.w.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *Backend) print(tag string, level Level, s string) {
	line := fmt.Sprintf("%s [%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05.000"), level, tag, s)
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, bw := range b.writers {
		if level >= bw.minLevel {
			io.WriteString(bw.w, line)
		}
	}
}

// Logger is a per-subsystem leveled log handle backed by a shared Backend.
type Logger struct {
	backend *Backend
	tag     string

	mtx   sync.RWMutex
	level Level
}

// Level returns the logger's current level.
func (l *Logger) Level() Level {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.level
}

// SetLevel changes the logger's minimum emitted level.
func (l *Logger) SetLevel(level Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.level = level
}

// Backend returns the logger's backend, used by callers that need to Close it.
func (l *Logger) Backend() *Backend {
	return l.backend
}

func (l *Logger) write(level Level, s string) {
	if level < l.Level() {
		return
	}
	l.backend.print(l.tag, level, s)
}

// Tracef logs at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) { l.write(LevelTrace, fmt.Sprintf(format, args...)) }

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.write(LevelDebug, fmt.Sprintf(format, args...)) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.write(LevelInfo, fmt.Sprintf(format, args...)) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.write(LevelWarn, fmt.Sprintf(format, args...)) }

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.write(LevelError, fmt.Sprintf(format, args...)) }

// Criticalf logs at LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.write(LevelCritical, fmt.Sprintf(format, args...))
}
