// Package logsink is the logging boundary of the planning core. Algorithms and
// the distance provider emit semantic messages through a Sink and never talk to
// a concrete logger.
package logsink

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARN"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "", "info":
		return Info, nil
	case "warn", "warning":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("logsink: unknown level %q", s)
}

// Sink receives leveled messages.
type Sink interface {
	Log(level Level, msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, msg string)

func (f SinkFunc) Log(level Level, msg string) { f(level, msg) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(Level, string) {})

func logf(s Sink, level Level, format string, args ...any) {
	if s == nil {
		return
	}
	s.Log(level, fmt.Sprintf(format, args...))
}

func Debugf(s Sink, format string, args ...any) { logf(s, Debug, format, args...) }
func Infof(s Sink, format string, args ...any)  { logf(s, Info, format, args...) }
func Warnf(s Sink, format string, args ...any)  { logf(s, Warning, format, args...) }
func Errorf(s Sink, format string, args ...any) { logf(s, Error, format, args...) }

// Std writes to a stdlib logger, dropping messages below Min.
type Std struct {
	Logger *log.Logger
	Min    Level
	Prefix string
}

// NewStd returns a Std sink over w using the standard log flags.
func NewStd(w io.Writer, min Level) *Std {
	return &Std{Logger: log.New(w, "", log.LstdFlags), Min: min}
}

func (s *Std) Log(level Level, msg string) {
	if level < s.Min {
		return
	}
	l := s.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("%s%s %s", s.Prefix, level, msg)
}

// Entry is a single recorded message.
type Entry struct {
	Level Level
	Msg   string
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Log(level Level, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg})
	r.mu.Unlock()
}

// Entries returns a snapshot of what was recorded.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Contains reports whether any message at level contains substr.
func (r *Recorder) Contains(level Level, substr string) bool {
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

// Tagged prefixes every message with a fixed tag, e.g. the job id.
func Tagged(s Sink, tag string) Sink {
	if s == nil {
		return Discard
	}
	return SinkFunc(func(level Level, msg string) { s.Log(level, "["+tag+"] "+msg) })
}
