// Package audit provides the append-only attempt log: an ordered per-session
// trail plus a Sink interface over external persistence.
package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonathan/court-booker/internal/retry"
	"github.com/jonathan/court-booker/internal/types"
)

// Sink is the external append-only log store. Appends happen once per
// discrete slot attempt; readers see most-recent-first ordering.
type Sink interface {
	Append(ctx context.Context, entry types.LogEntry) error
	ReadRecent(ctx context.Context, n int) ([]types.LogEntry, error)
}

// Trail is one session's ordered log of messages and transitions. It
// replaces scattered print-style logging: every line is timestamped and
// retained for the notification report, and still echoed to the terminal.
type Trail struct {
	mu    sync.Mutex
	label string
	lines []string
}

// NewTrail creates a trail labelled with the session's account name.
func NewTrail(label string) *Trail {
	return &Trail{label: label}
}

// Logf records a formatted line and echoes it to stdout.
func (t *Trail) Logf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05.000"), fmt.Sprintf(format, args...))
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
	fmt.Printf("%s %s\n", t.label, line)
}

// Lines returns a copy of the recorded lines in order.
func (t *Trail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of recorded lines.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// Writer pushes entries into a Sink with retry, without ever letting a
// persistence failure affect the booking outcome.
type Writer struct {
	sink   Sink
	policy *retry.Policy
}

// NewWriter wraps sink with the given retry policy (nil selects the
// default policy).
func NewWriter(sink Sink, policy *retry.Policy) *Writer {
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	return &Writer{sink: sink, policy: policy}
}

// Append persists one attempt entry. Failures are retried per policy and
// then logged; they are never propagated to the caller.
func (w *Writer) Append(ctx context.Context, entry types.LogEntry) {
	if w == nil || w.sink == nil {
		return
	}
	err := w.policy.Do(ctx, func(ctx context.Context) error {
		return w.sink.Append(ctx, entry)
	})
	if err != nil {
		log.Printf("audit: dropping log entry for %s %s %s: %v", entry.ResourceID, entry.Date, entry.Time, err)
	}
}

// MemorySink is an in-process Sink used for dry runs and tests. Entries
// are held chronologically and served most-recent-first.
type MemorySink struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append records the entry. Safe for concurrent writers.
func (m *MemorySink) Append(_ context.Context, entry types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// ReadRecent returns up to n entries, newest first.
func (m *MemorySink) ReadRecent(_ context.Context, n int) ([]types.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]types.LogEntry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// All returns every entry in chronological order.
func (m *MemorySink) All() []types.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
