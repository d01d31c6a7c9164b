package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteDataset is the only dataset a SQLite file exposes.
const sqliteDataset = "main"

// SQLite implements Warehouse against a local SQLite database. It exists for
// development and tests; the file's single schema is exposed as one dataset
// named "main".
type SQLite struct {
	db      *sql.DB
	maxRows int
}

// NewSQLite opens a SQLite database file as a warehouse backend.
func NewSQLite(path string, maxRows int) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite warehouse: open: %w", err)
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &SQLite{db: db, maxRows: maxRows}, nil
}

func (w *SQLite) Name() string { return "sqlite" }

// Close releases the underlying database handle.
func (w *SQLite) Close() error { return w.db.Close() }

// DB returns the underlying database connection (for test seeding).
func (w *SQLite) DB() *sql.DB { return w.db }

func (w *SQLite) ListDatasets(_ context.Context) ([]string, error) {
	return []string{sqliteDataset}, nil
}

func (w *SQLite) ListTables(ctx context.Context, dataset string) ([]string, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}

	rows, err := w.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite warehouse: list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite warehouse: scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (w *SQLite) DescribeTable(ctx context.Context, dataset, table string) (*TableInfo, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}

	// PRAGMA cannot take bind parameters; verify the table exists first so
	// the quoted name below is always a known identifier.
	tables, err := w.ListTables(ctx, dataset)
	if err != nil {
		return nil, err
	}
	known := false
	for _, t := range tables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("sqlite warehouse: table %q not found", table)
	}

	rows, err := w.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite warehouse: describe %s: %w", table, err)
	}
	defer rows.Close()

	info := &TableInfo{Dataset: sqliteDataset, Table: table}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("sqlite warehouse: scan column: %w", err)
		}
		mode := "NULLABLE"
		if notNull != 0 || pk != 0 {
			mode = "REQUIRED"
		}
		info.Columns = append(info.Columns, Column{Name: name, Type: typ, Mode: mode})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite warehouse: describe %s: %w", table, err)
	}

	if err := w.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&info.NumRows); err != nil {
		return nil, fmt.Errorf("sqlite warehouse: count %s: %w", table, err)
	}
	return info, nil
}

func (w *SQLite) Query(ctx context.Context, query string) (*Rows, error) {
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite warehouse: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite warehouse: columns: %w", err)
	}

	result := &Rows{Columns: cols}
	for rows.Next() {
		if len(result.Values) >= w.maxRows {
			result.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite warehouse: scan row: %w", err)
		}
		result.Values = append(result.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite warehouse: rows: %w", err)
	}
	return result, nil
}

func checkDataset(dataset string) error {
	if dataset != "" && dataset != sqliteDataset {
		return fmt.Errorf("sqlite warehouse: unknown dataset %q (only %q exists)", dataset, sqliteDataset)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
