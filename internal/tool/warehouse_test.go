package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/datasage-io/datasage/internal/warehouse"
)

// fakeWarehouse is an in-memory Warehouse for tool tests.
type fakeWarehouse struct {
	datasets map[string][]string // dataset → tables
	queryErr error
}

func (f *fakeWarehouse) Name() string { return "fake" }

func (f *fakeWarehouse) ListDatasets(_ context.Context) ([]string, error) {
	var out []string
	for d := range f.datasets {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeWarehouse) ListTables(_ context.Context, dataset string) ([]string, error) {
	tables, ok := f.datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found", dataset)
	}
	return tables, nil
}

func (f *fakeWarehouse) DescribeTable(_ context.Context, dataset, table string) (*warehouse.TableInfo, error) {
	for _, t := range f.datasets[dataset] {
		if t == table {
			return &warehouse.TableInfo{
				Dataset: dataset,
				Table:   table,
				NumRows: 42,
				Columns: []warehouse.Column{{Name: "id", Type: "INTEGER", Mode: "REQUIRED"}},
			}, nil
		}
	}
	return nil, fmt.Errorf("table %q not found", table)
}

func (f *fakeWarehouse) Query(_ context.Context, _ string) (*warehouse.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &warehouse.Rows{
		Columns: []string{"n"},
		Values:  [][]any{{int64(7)}},
	}, nil
}

func newFake() *fakeWarehouse {
	return &fakeWarehouse{datasets: map[string][]string{
		"sales": {"orders", "customers"},
	}}
}

func TestRegisterWarehouseTools(t *testing.T) {
	reg := NewRegistry()
	RegisterWarehouseTools(reg, newFake())

	want := []string{"describe_table", "list_datasets", "list_tables", "run_query"}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("tools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tools[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListDatasetsTool(t *testing.T) {
	tool := &ListDatasetsTool{Warehouse: newFake()}
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "sales" {
		t.Errorf("output = %q", out)
	}
}

func TestListTablesTool(t *testing.T) {
	tool := &ListTablesTool{Warehouse: newFake()}
	out, err := tool.Execute(context.Background(), map[string]any{"dataset_id": "sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "orders\ncustomers" {
		t.Errorf("output = %q", out)
	}
}

func TestListTablesTool_MissingParam(t *testing.T) {
	tool := &ListTablesTool{Warehouse: newFake()}
	if _, err := tool.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing dataset_id")
	}
}

func TestDescribeTableTool(t *testing.T) {
	tool := &DescribeTableTool{Warehouse: newFake()}
	out, err := tool.Execute(context.Background(), map[string]any{
		"dataset_id": "sales",
		"table_id":   "orders",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "sales.orders") || !strings.Contains(out, "42 rows") {
		t.Errorf("output = %q", out)
	}
}

func TestDescribeTableTool_MissingParams(t *testing.T) {
	tool := &DescribeTableTool{Warehouse: newFake()}
	if _, err := tool.Execute(context.Background(), map[string]any{"dataset_id": "sales"}); err == nil {
		t.Fatal("expected error for missing table_id")
	}
}

func TestRunQueryTool(t *testing.T) {
	tool := &RunQueryTool{Warehouse: newFake()}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "SELECT 7 AS n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "7") || !strings.Contains(out, "(1 rows)") {
		t.Errorf("output = %q", out)
	}
}

func TestRunQueryTool_SQLError(t *testing.T) {
	fake := newFake()
	fake.queryErr = fmt.Errorf("syntax error near SELEC")
	tool := &RunQueryTool{Warehouse: fake}
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "SELEC"}); err == nil {
		t.Fatal("expected error from failing query")
	}
}
