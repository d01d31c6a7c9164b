package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const refreshTimeout = 2 * time.Minute

// Source is the slice of the warehouse the catalog reads from.
type Source interface {
	ListDatasets(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, dataset string) ([]string, error)
}

// Catalog is a cached snapshot of the warehouse's datasets and tables,
// refreshed in the background on a cron schedule. The snapshot is rendered
// into the analyst's system prompt so common questions skip a listing
// round-trip. A failed refresh keeps the previous snapshot.
type Catalog struct {
	mu       sync.RWMutex
	source   Source
	logger   *slog.Logger
	cron     *cron.Cron
	datasets map[string][]string // dataset → tables, sorted
	updated  time.Time
}

// New creates a catalog over the given source.
func New(source Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		source: source,
		logger: logger,
		cron:   cron.New(),
	}
}

// Refresh re-reads the dataset and table listings.
func (c *Catalog) Refresh(ctx context.Context) error {
	names, err := c.source.ListDatasets(ctx)
	if err != nil {
		return fmt.Errorf("catalog: list datasets: %w", err)
	}

	snapshot := make(map[string][]string, len(names))
	for _, ds := range names {
		tables, err := c.source.ListTables(ctx, ds)
		if err != nil {
			return fmt.Errorf("catalog: list tables in %s: %w", ds, err)
		}
		sort.Strings(tables)
		snapshot[ds] = tables
	}

	c.mu.Lock()
	c.datasets = snapshot
	c.updated = time.Now()
	c.mu.Unlock()

	c.logger.Info("catalog refreshed", "datasets", len(snapshot))
	return nil
}

// Start registers the refresh schedule and blocks until ctx is cancelled.
// The schedule is a cron expression or a predefined one like "@every 1h".
func (c *Catalog) Start(ctx context.Context, schedule string) error {
	_, err := c.cron.AddFunc(schedule, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := c.Refresh(refreshCtx); err != nil {
			c.logger.Warn("catalog refresh failed, keeping previous snapshot", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("catalog: invalid schedule %q: %w", schedule, err)
	}

	c.cron.Start()
	c.logger.Info("catalog refresher started", "schedule", schedule)

	<-ctx.Done()
	c.cron.Stop()
	c.logger.Info("catalog refresher stopped")
	return ctx.Err()
}

// Summary renders the snapshot as a prompt-friendly block. Returns "" when
// no snapshot has been taken yet.
func (c *Catalog) Summary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.datasets) == 0 {
		return ""
	}

	names := make([]string, 0, len(c.datasets))
	for ds := range c.datasets {
		names = append(names, ds)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Warehouse catalog (datasets and their tables):\n")
	for _, ds := range names {
		fmt.Fprintf(&b, "- %s: %s\n", ds, strings.Join(c.datasets[ds], ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Snapshot returns a copy of the cached dataset→tables map.
func (c *Catalog) Snapshot() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]string, len(c.datasets))
	for ds, tables := range c.datasets {
		out[ds] = append([]string(nil), tables...)
	}
	return out
}

// Updated returns the time of the last successful refresh.
func (c *Catalog) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}
