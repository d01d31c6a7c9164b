package warehouse

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWarehouse(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wh.db")
	w, err := NewSQLite(path, 10)
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	stmts := []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer TEXT NOT NULL, total REAL)`,
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO orders (id, customer, total) VALUES (1, 'acme', 12.5), (2, 'globex', 99)`,
	}
	for _, s := range stmts {
		if _, err := w.DB().Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return w
}

func TestSQLite_ListDatasets(t *testing.T) {
	w := newTestWarehouse(t)
	ds, err := w.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds) != 1 || ds[0] != "main" {
		t.Errorf("datasets = %v, want [main]", ds)
	}
}

func TestSQLite_ListTables(t *testing.T) {
	w := newTestWarehouse(t)
	tables, err := w.ListTables(context.Background(), "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %v", tables)
	}
	// sqlite_master listing is ordered by name
	if tables[0] != "customers" || tables[1] != "orders" {
		t.Errorf("tables = %v", tables)
	}
}

func TestSQLite_ListTables_UnknownDataset(t *testing.T) {
	w := newTestWarehouse(t)
	if _, err := w.ListTables(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown dataset")
	}
}

func TestSQLite_DescribeTable(t *testing.T) {
	w := newTestWarehouse(t)
	info, err := w.DescribeTable(context.Background(), "main", "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.NumRows != 2 {
		t.Errorf("num rows = %d, want 2", info.NumRows)
	}
	if len(info.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %v", info.Columns)
	}
	if info.Columns[1].Name != "customer" || info.Columns[1].Mode != "REQUIRED" {
		t.Errorf("customer column = %+v", info.Columns[1])
	}

	rendered := info.Render()
	if !strings.Contains(rendered, "main.orders") || !strings.Contains(rendered, "customer") {
		t.Errorf("render missing fields:\n%s", rendered)
	}
}

func TestSQLite_DescribeTable_Unknown(t *testing.T) {
	w := newTestWarehouse(t)
	if _, err := w.DescribeTable(context.Background(), "main", "ghost"); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestSQLite_Query(t *testing.T) {
	w := newTestWarehouse(t)
	rows, err := w.Query(context.Background(), `SELECT customer, total FROM orders ORDER BY id`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows.Columns) != 2 || rows.Columns[0] != "customer" {
		t.Errorf("columns = %v", rows.Columns)
	}
	if len(rows.Values) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows.Values))
	}
	if rows.Truncated {
		t.Error("result should not be truncated")
	}

	out := rows.Render()
	if !strings.Contains(out, "acme") || !strings.Contains(out, "globex") {
		t.Errorf("render missing rows:\n%s", out)
	}
	if !strings.Contains(out, "(2 rows)") {
		t.Errorf("render missing row count:\n%s", out)
	}
}

func TestSQLite_Query_RowCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wh.db")
	w, err := NewSQLite(path, 3)
	if err != nil {
		t.Fatalf("open warehouse: %v", err)
	}
	defer w.Close()

	if _, err := w.DB().Exec(`CREATE TABLE n (v INTEGER)`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := w.DB().Exec(`INSERT INTO n (v) VALUES (?)`, i); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := w.Query(context.Background(), `SELECT v FROM n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows.Values) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows.Values))
	}
	if !rows.Truncated {
		t.Error("expected truncated result")
	}
	if !strings.Contains(rows.Render(), "truncated") {
		t.Error("render should note truncation")
	}
}

func TestSQLite_Query_BadSQL(t *testing.T) {
	w := newTestWarehouse(t)
	if _, err := w.Query(context.Background(), `SELECT FROM WHERE`); err == nil {
		t.Fatal("expected error for invalid SQL")
	}
}

func TestRows_RenderNULL(t *testing.T) {
	r := &Rows{
		Columns: []string{"a", "b"},
		Values:  [][]any{{int64(1), nil}},
	}
	out := r.Render()
	if !strings.Contains(out, "NULL") {
		t.Errorf("expected NULL marker:\n%s", out)
	}
}
