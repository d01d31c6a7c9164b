package logbuf

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRing_Wraps(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 5; i++ {
		r.Write(Entry{Level: "INFO", Message: fmt.Sprintf("m%d", i)})
	}

	if r.Len() != 3 {
		t.Fatalf("len = %d", r.Len())
	}

	got := r.Query(time.Time{}, slog.LevelDebug, 0)
	if len(got) != 3 {
		t.Fatalf("query returned %d entries", len(got))
	}
	// Oldest first, m1/m2 evicted.
	if got[0].Message != "m3" || got[2].Message != "m5" {
		t.Errorf("entries = %v", got)
	}
}

func TestRing_QueryFilters(t *testing.T) {
	r := NewRing(10)
	base := time.Now()
	r.Write(Entry{Time: base, Level: "DEBUG", Message: "old debug"})
	r.Write(Entry{Time: base.Add(time.Second), Level: "INFO", Message: "info"})
	r.Write(Entry{Time: base.Add(2 * time.Second), Level: "ERROR", Message: "boom"})

	if got := r.Query(time.Time{}, slog.LevelWarn, 0); len(got) != 1 || got[0].Message != "boom" {
		t.Errorf("level filter: %v", got)
	}
	if got := r.Query(base.Add(time.Second), slog.LevelDebug, 0); len(got) != 2 {
		t.Errorf("since filter: %v", got)
	}
	// Limit keeps the newest.
	if got := r.Query(time.Time{}, slog.LevelDebug, 1); len(got) != 1 || got[0].Message != "boom" {
		t.Errorf("limit: %v", got)
	}
}

func TestTeeHandler_CapturesAndForwards(t *testing.T) {
	ring := NewRing(10)
	var out bytes.Buffer
	inner := slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(NewTeeHandler(inner, ring))

	logger.Info("quiet", "k", "v")
	logger.Error("loud", "error", fmt.Errorf("kaput"))

	// Ring sees both, inner only the error.
	entries := ring.Query(time.Time{}, slog.LevelDebug, 0)
	if len(entries) != 2 {
		t.Fatalf("ring captured %d entries", len(entries))
	}
	if entries[0].Attrs["k"] != "v" {
		t.Errorf("attrs = %v", entries[0].Attrs)
	}
	// Errors flatten to strings.
	if entries[1].Attrs["error"] != "kaput" {
		t.Errorf("error attr = %v", entries[1].Attrs["error"])
	}

	if strings.Contains(out.String(), "quiet") {
		t.Error("inner handler should not see INFO")
	}
	if !strings.Contains(out.String(), "loud") {
		t.Error("inner handler missing ERROR")
	}
}

func TestTeeHandler_GroupsQualifyKeys(t *testing.T) {
	ring := NewRing(4)
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	logger := slog.New(NewTeeHandler(inner, ring)).WithGroup("warehouse").With("backend", "sqlite")

	logger.Info("ready")

	entries := ring.Query(time.Time{}, slog.LevelDebug, 0)
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].Attrs["warehouse.backend"] != "sqlite" {
		t.Errorf("attrs = %v", entries[0].Attrs)
	}
}
