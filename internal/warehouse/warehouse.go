package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Warehouse is the abstraction over a queryable data warehouse. All calls
// block and honor ctx cancellation; the analyst issues them one at a time.
type Warehouse interface {
	Name() string
	ListDatasets(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, dataset string) ([]string, error)
	DescribeTable(ctx context.Context, dataset, table string) (*TableInfo, error)
	Query(ctx context.Context, query string) (*Rows, error)
}

// Column describes a single column of a warehouse table.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Mode        string `json:"mode,omitempty"`
	Description string `json:"description,omitempty"`
}

// TableInfo is the metadata returned by DescribeTable.
type TableInfo struct {
	Dataset     string   `json:"dataset"`
	Table       string   `json:"table"`
	Description string   `json:"description,omitempty"`
	NumRows     int64    `json:"num_rows"`
	Columns     []Column `json:"columns"`
}

// Render formats table metadata as the string handed back to the model.
func (t *TableInfo) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s.%s (%d rows)\n", t.Dataset, t.Table, t.NumRows)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n", t.Description)
	}
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "  %s  %s", c.Name, c.Type)
		if c.Mode != "" {
			fmt.Fprintf(&b, "  %s", c.Mode)
		}
		if c.Description != "" {
			fmt.Fprintf(&b, "  -- %s", c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Rows is a bounded query result set.
type Rows struct {
	Columns   []string `json:"columns"`
	Values    [][]any  `json:"values"`
	Truncated bool     `json:"truncated,omitempty"` // row cap was hit
}

// Render formats the result set as an aligned text table.
func (r *Rows) Render() string {
	if len(r.Columns) == 0 {
		return "(no results)"
	}

	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(r.Values))
	for i, row := range r.Values {
		cells[i] = make([]string, len(r.Columns))
		for j := range r.Columns {
			var s string
			if j < len(row) {
				s = formatValue(row[j])
			}
			cells[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	var b strings.Builder
	writeRow := func(vals []string) {
		for j, v := range vals {
			if j > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[j], v)
		}
		b.WriteString("\n")
	}
	writeRow(r.Columns)
	for j, w := range widths {
		if j > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range cells {
		writeRow(row)
	}
	fmt.Fprintf(&b, "(%d rows", len(r.Values))
	if r.Truncated {
		b.WriteString(", truncated")
	}
	b.WriteString(")\n")
	return b.String()
}

// formatValue renders a single cell for display.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", x), "0"), ".")
	default:
		return fmt.Sprintf("%v", x)
	}
}
