// Package logbuf keeps a bounded in-memory tail of the daemon's logs so the
// API can serve them without touching disk.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a single captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring is a fixed-capacity buffer of log entries. Once full, each write
// overwrites the oldest entry.
type Ring struct {
	mu  sync.Mutex
	buf []Entry
	cap int
	n   int // total writes, capped at cap once wrapped
	w   int // next write index
}

// NewRing creates a ring holding up to capacity entries.
func NewRing(capacity int) *Ring {
	return &Ring{
		buf: make([]Entry, capacity),
		cap: capacity,
	}
}

// Write appends an entry, evicting the oldest when full.
func (r *Ring) Write(e Entry) {
	r.mu.Lock()
	r.buf[r.w] = e
	r.w = (r.w + 1) % r.cap
	if r.n < r.cap {
		r.n++
	}
	r.mu.Unlock()
}

// Len returns the number of entries currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Query returns entries at or above minLevel and not before since, oldest
// first. A zero since matches everything; limit <= 0 means no limit. When
// more than limit entries match, the newest ones win.
func (r *Ring) Query(since time.Time, minLevel slog.Level, limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldest := 0
	if r.n == r.cap {
		oldest = r.w
	}

	var out []Entry
	for i := 0; i < r.n; i++ {
		e := r.buf[(oldest+i)%r.cap]
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		if levelFromString(e.Level) < minLevel {
			continue
		}
		out = append(out, e)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelFromString(s string) slog.Level {
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
