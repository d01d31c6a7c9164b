package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeSource is an in-memory Source whose listings can be swapped or broken.
type fakeSource struct {
	datasets map[string][]string
	fail     bool
}

func (f *fakeSource) ListDatasets(_ context.Context) ([]string, error) {
	if f.fail {
		return nil, fmt.Errorf("backend down")
	}
	var out []string
	for ds := range f.datasets {
		out = append(out, ds)
	}
	return out, nil
}

func (f *fakeSource) ListTables(_ context.Context, dataset string) ([]string, error) {
	if f.fail {
		return nil, fmt.Errorf("backend down")
	}
	return f.datasets[dataset], nil
}

func TestCatalog_Refresh(t *testing.T) {
	src := &fakeSource{datasets: map[string][]string{
		"sales": {"orders", "customers"},
		"ops":   {"incidents"},
	}}
	c := New(src, nil)

	if c.Summary() != "" {
		t.Error("expected empty summary before first refresh")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot = %v", snap)
	}
	// Tables come back sorted.
	if snap["sales"][0] != "customers" || snap["sales"][1] != "orders" {
		t.Errorf("sales tables = %v", snap["sales"])
	}
	if c.Updated().IsZero() {
		t.Error("expected updated timestamp to be set")
	}
}

func TestCatalog_Summary(t *testing.T) {
	src := &fakeSource{datasets: map[string][]string{
		"sales": {"orders"},
		"ops":   {"incidents"},
	}}
	c := New(src, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := c.Summary()
	if !strings.Contains(s, "- sales: orders") || !strings.Contains(s, "- ops: incidents") {
		t.Errorf("summary = %q", s)
	}
	// Datasets are listed in sorted order.
	if strings.Index(s, "- ops:") > strings.Index(s, "- sales:") {
		t.Errorf("summary not sorted:\n%s", s)
	}
}

func TestCatalog_RefreshFailureKeepsSnapshot(t *testing.T) {
	src := &fakeSource{datasets: map[string][]string{"sales": {"orders"}}}
	c := New(src, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src.fail = true
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	// Previous snapshot survives.
	if len(c.Snapshot()) != 1 {
		t.Errorf("snapshot lost after failed refresh: %v", c.Snapshot())
	}
}

func TestCatalog_StartRejectsBadSchedule(t *testing.T) {
	c := New(&fakeSource{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Start(ctx, "not a schedule"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
