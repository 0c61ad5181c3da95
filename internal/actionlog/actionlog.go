// Package actionlog records the operations a dry run would have performed
// and summarizes them once the run ends.
package actionlog

import (
	"sync"
	"time"
)

// ActionType classifies a recorded operation.
type ActionType int

const (
	AICall ActionType = iota
	FileWrite
	FileDelete
	FileRead
	Command
	Menu
	Task
	Other
)

// Types lists every ActionType in display order.
var Types = []ActionType{AICall, FileWrite, FileDelete, FileRead, Command, Menu, Task, Other}

// String returns the type name used in reports.
func (t ActionType) String() string {
	switch t {
	case AICall:
		return "AICall"
	case FileWrite:
		return "FileWrite"
	case FileDelete:
		return "FileDelete"
	case FileRead:
		return "FileRead"
	case Command:
		return "Command"
	case Menu:
		return "Menu"
	case Task:
		return "Task"
	default:
		return "Other"
	}
}

// Entry is one recorded operation. Details hold salient, non-secret
// facts such as a prompt length or target path.
type Entry struct {
	Type        ActionType
	Description string
	Details     map[string]string
	Timestamp   time.Time
}

// Log is an append-only sequence of entries for one dry run.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty Log.
func New() *Log {
	return &Log{now: time.Now}
}

// NewWithClock returns an empty Log that stamps entries using now.
func NewWithClock(now func() time.Time) *Log {
	return &Log{now: now}
}

// Record appends an entry. A zero Timestamp is filled in from the clock.
// Details are copied so later changes by the caller are not observed.
func (l *Log) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Details = copyDetails(e.Details)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Add is shorthand for Record with alternating detail key/value pairs.
func (l *Log) Add(t ActionType, description string, kv ...string) {
	var details map[string]string
	if len(kv) > 1 {
		details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			details[kv[i]] = kv[i+1]
		}
	}
	l.Record(Entry{Type: t, Description: description, Details: details})
}

// Entries returns a copy of the recorded entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		e.Details = copyDetails(e.Details)
		out[i] = e
	}
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards every entry. It is called only when a dry run starts or
// stops, never while one is in progress.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func copyDetails(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
