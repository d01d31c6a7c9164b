package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	defaultMaxBytesBilled = 100 * 1000 * 1000 // 100 MB billing cap per query
	defaultMaxRows        = 200
)

// BigQueryConfig holds BigQuery backend settings.
type BigQueryConfig struct {
	ProjectID       string
	Location        string // e.g. "US"; empty lets the service decide
	CredentialsFile string // optional service-account key path
	MaxBytesBilled  int64  // per-query billing cap, 0 = default
	MaxRows         int    // per-query result row cap, 0 = default
}

// BigQuery implements Warehouse against Google BigQuery.
type BigQuery struct {
	client         *bigquery.Client
	location       string
	maxBytesBilled int64
	maxRows        int
}

// NewBigQuery creates a BigQuery-backed warehouse.
func NewBigQuery(ctx context.Context, cfg BigQueryConfig) (*BigQuery, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("bigquery: project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}

	w := &BigQuery{
		client:         client,
		location:       cfg.Location,
		maxBytesBilled: cfg.MaxBytesBilled,
		maxRows:        cfg.MaxRows,
	}
	if w.maxBytesBilled <= 0 {
		w.maxBytesBilled = defaultMaxBytesBilled
	}
	if w.maxRows <= 0 {
		w.maxRows = defaultMaxRows
	}
	return w, nil
}

func (w *BigQuery) Name() string { return "bigquery" }

// Close releases the underlying client.
func (w *BigQuery) Close() error { return w.client.Close() }

func (w *BigQuery) ListDatasets(ctx context.Context) ([]string, error) {
	var datasets []string
	it := w.client.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: list datasets: %w", err)
		}
		datasets = append(datasets, ds.DatasetID)
	}
	return datasets, nil
}

func (w *BigQuery) ListTables(ctx context.Context, dataset string) ([]string, error) {
	var tables []string
	it := w.client.Dataset(dataset).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: list tables in %s: %w", dataset, err)
		}
		tables = append(tables, t.TableID)
	}
	return tables, nil
}

func (w *BigQuery) DescribeTable(ctx context.Context, dataset, table string) (*TableInfo, error) {
	md, err := w.client.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: describe %s.%s: %w", dataset, table, err)
	}

	info := &TableInfo{
		Dataset:     dataset,
		Table:       table,
		Description: md.Description,
		NumRows:     int64(md.NumRows),
		Columns:     make([]Column, 0, len(md.Schema)),
	}
	for _, f := range md.Schema {
		mode := "NULLABLE"
		if f.Required {
			mode = "REQUIRED"
		}
		if f.Repeated {
			mode = "REPEATED"
		}
		info.Columns = append(info.Columns, Column{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        mode,
			Description: f.Description,
		})
	}
	return info, nil
}

// Query runs a SQL statement with the configured billing cap and returns up
// to maxRows rows.
func (w *BigQuery) Query(ctx context.Context, query string) (*Rows, error) {
	q := w.client.Query(query)
	q.MaxBytesBilled = w.maxBytesBilled
	if w.location != "" {
		q.Location = w.location
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery: query: %w", err)
	}

	result := &Rows{}
	for len(result.Values) < w.maxRows {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: read row: %w", err)
		}
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = v
		}
		result.Values = append(result.Values, vals)
	}

	// Schema is populated once the first page has been fetched.
	for _, f := range it.Schema {
		result.Columns = append(result.Columns, f.Name)
	}
	if len(result.Values) == w.maxRows {
		// Probe one more row to decide whether the cap was hit.
		var row []bigquery.Value
		if err := it.Next(&row); err == nil {
			result.Truncated = true
		}
	}
	return result, nil
}
