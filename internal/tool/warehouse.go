package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/datasage-io/datasage/internal/warehouse"
)

// RegisterWarehouseTools adds the fixed warehouse tool set to a registry.
func RegisterWarehouseTools(reg *Registry, w warehouse.Warehouse) {
	reg.Register(&ListDatasetsTool{Warehouse: w})
	reg.Register(&ListTablesTool{Warehouse: w})
	reg.Register(&DescribeTableTool{Warehouse: w})
	reg.Register(&RunQueryTool{Warehouse: w})
}

// --- ListDatasets ---

// ListDatasetsTool lists the datasets visible in the warehouse.
type ListDatasetsTool struct {
	Warehouse warehouse.Warehouse
}

func (t *ListDatasetsTool) Name() string { return "list_datasets" }
func (t *ListDatasetsTool) Description() string {
	return "Get a list of datasets that exist in the data warehouse"
}
func (t *ListDatasetsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ListDatasetsTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	datasets, err := t.Warehouse.ListDatasets(ctx)
	if err != nil {
		return "", fmt.Errorf("list_datasets: %w", err)
	}
	if len(datasets) == 0 {
		return "No datasets found.", nil
	}
	return strings.Join(datasets, "\n"), nil
}

// --- ListTables ---

// ListTablesTool lists the tables in a dataset.
type ListTablesTool struct {
	Warehouse warehouse.Warehouse
}

func (t *ListTablesTool) Name() string { return "list_tables" }
func (t *ListTablesTool) Description() string {
	return "List tables in a dataset that will help answer the user's question"
}
func (t *ListTablesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dataset_id": map[string]any{"type": "string", "description": "Dataset ID to fetch tables from"},
		},
		"required": []string{"dataset_id"},
	}
}

func (t *ListTablesTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	dataset := getString(params, "dataset_id")
	if dataset == "" {
		return "", fmt.Errorf("list_tables: dataset_id is required")
	}
	tables, err := t.Warehouse.ListTables(ctx, dataset)
	if err != nil {
		return "", fmt.Errorf("list_tables: %w", err)
	}
	if len(tables) == 0 {
		return fmt.Sprintf("No tables found in dataset %s.", dataset), nil
	}
	return strings.Join(tables, "\n"), nil
}

// --- DescribeTable ---

// DescribeTableTool returns schema and row-count metadata for a table.
type DescribeTableTool struct {
	Warehouse warehouse.Warehouse
}

func (t *DescribeTableTool) Name() string { return "describe_table" }
func (t *DescribeTableTool) Description() string {
	return "Get information about a table, including its description, schema, and number of rows"
}
func (t *DescribeTableTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dataset_id": map[string]any{"type": "string", "description": "Dataset ID containing the table"},
			"table_id":   map[string]any{"type": "string", "description": "Table ID to describe"},
		},
		"required": []string{"dataset_id", "table_id"},
	}
}

func (t *DescribeTableTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	dataset := getString(params, "dataset_id")
	table := getString(params, "table_id")
	if dataset == "" || table == "" {
		return "", fmt.Errorf("describe_table: dataset_id and table_id are required")
	}
	info, err := t.Warehouse.DescribeTable(ctx, dataset, table)
	if err != nil {
		return "", fmt.Errorf("describe_table: %w", err)
	}
	return info.Render(), nil
}

// --- RunQuery ---

// RunQueryTool executes a SQL query against the warehouse. The backend
// enforces the per-query billing cap and result row cap.
type RunQueryTool struct {
	Warehouse warehouse.Warehouse
}

func (t *RunQueryTool) Name() string { return "run_query" }
func (t *RunQueryTool) Description() string {
	return "Run a SQL query against the data warehouse and return the results"
}
func (t *RunQueryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "SQL query on a single line that will return the information needed"},
		},
		"required": []string{"query"},
	}
}

func (t *RunQueryTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := getString(params, "query")
	if query == "" {
		return "", fmt.Errorf("run_query: query is required")
	}
	rows, err := t.Warehouse.Query(ctx, query)
	if err != nil {
		return "", fmt.Errorf("run_query: %w", err)
	}
	return rows.Render(), nil
}
