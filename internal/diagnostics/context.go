// Package diagnostics provides a passive, append-only log that accumulates
// events as the instrumentation pipeline runs. It does not format or print
// anything itself — a collaborator (the CLI, a test) reads Entries() and
// renders them.
package diagnostics

import "sync"

// Log is the append-only event recorder threaded through the Driver, Editor,
// and Replacer. It is thread-safe for concurrent writes, standing in for the
// host's single execution lock under which every probe firing, driver
// callback, and code-object replacement actually runs (spec.md §5) — one
// mutex is enough, the same way the teacher's DebugContext uses a single
// mutex to guard an append-only entry list.
type Log struct {
	component string
	entries   []*Entry
	mu        sync.Mutex
}

// NewLog is the sole constructor. component names the subsystem the log was
// created for (e.g. "driver", "editor:foo.py") and is attached to every
// entry recorded through this Log.
func NewLog(component string) *Log {
	return &Log{component: component, entries: make([]*Entry, 0)}
}

func (l *Log) record(severity Severity, message string) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := &Entry{severity: severity, component: l.component, message: message}
	l.entries = append(l.entries, e)
	return e
}

// Error records an entry with SeverityError and returns it for chaining.
func (l *Log) Error(message string) *Entry { return l.record(SeverityError, message) }

// Warning records an entry with SeverityWarning and returns it for chaining.
func (l *Log) Warning(message string) *Entry { return l.record(SeverityWarning, message) }

// Info records an entry with SeverityInfo and returns it for chaining.
func (l *Log) Info(message string) *Entry { return l.record(SeverityInfo, message) }

// Trace records an entry with SeverityTrace and returns it for chaining.
func (l *Log) Trace(message string) *Entry { return l.record(SeverityTrace, message) }

// Entries returns every recorded entry, in insertion order. The returned
// slice is a copy; mutating it does not affect the Log.
func (l *Log) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasErrors reports whether at least one SeverityError entry was recorded.
func (l *Log) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the total number of recorded entries.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
