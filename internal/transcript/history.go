// Package transcript keeps a bounded in-memory history of completed
// transcriptions and optionally persists them as append-only JSON lines in a
// local file.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// defaultCapacity is the number of entries History retains when no capacity
// is given.
const defaultCapacity = 50

// Entry is a single completed transcription.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	DurationMs int64     `json:"duration_ms"`
	Samples    int       `json:"samples"`
	Speaker    string    `json:"speaker,omitempty"`
}

// History is a fixed-capacity ring of the most recent transcriptions.
// Thread-safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	logPath string
}

// Option configures a [History].
type Option func(*History)

// WithCapacity sets how many entries are retained. Values below 1 keep the
// default.
func WithCapacity(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.entries = make([]Entry, n)
		}
	}
}

// WithLogFile additionally appends every entry as a JSON line to path. The
// file is created on first write.
func WithLogFile(path string) Option {
	return func(h *History) { h.logPath = path }
}

// NewHistory creates an empty transcription history.
func NewHistory(opts ...Option) *History {
	h := &History{entries: make([]Entry, defaultCapacity)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Add records one transcription, evicting the oldest entry when the ring is
// full. When a log file is configured the entry is also appended there; a
// write failure is returned but the in-memory record always succeeds.
func (h *History) Add(e Entry) error {
	h.mu.Lock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
	path := h.logPath
	h.mu.Unlock()

	if path == "" {
		return nil
	}
	return appendJSONLine(path, e)
}

// Recent returns up to n entries, newest first. n <= 0 returns everything
// retained.
func (h *History) Recent(n int) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = len(h.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.entries)) % len(h.entries)
		out = append(out, h.entries[idx])
	}
	return out
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// appendJSONLine marshals e and appends it to the file at path.
func appendJSONLine(path string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("transcript: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("transcript: write: %w", err)
	}
	return nil
}
