// Package source connects to profiled databases and pulls the raw
// material the pipeline works on: column metadata, row counts, and
// bounded table samples. Dialect-specific behavior lives behind
// DialectHandler implementations registered by the driver subpackages.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/qupid/dq-suggestions/internal/config"
)

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Sample is a bounded slice of a table: its column metadata plus up to
// the requested number of rows, each keyed by column name.
type Sample struct {
	Columns []ColumnInfo             `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// DialectHandler abstracts the per-dialect pieces of sampling a table.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.SourceConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.SourceConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	// SampleQuery returns the dialect's bounded SELECT for the given
	// quoted schema-qualified table.
	SampleQuery(quotedTable string, limit int) string
	DefaultSchema() string
	ListTables(ctx context.Context, db *DB, schema string) ([]string, error)
	ListColumns(ctx context.Context, db *DB, schema, table string) ([]ColumnInfo, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler makes a handler available under a dialect name.
// Later registrations win.
func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	dialectHandlers[dialect] = handler
}

// GetDialectHandler looks up the handler for a dialect name.
func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// SupportedDialects lists the registered dialect names.
func SupportedDialects() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialectHandlers))
	for name := range dialectHandlers {
		names = append(names, name)
	}
	return names
}

// DB pairs a connection pool with the dialect handler that built it.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.SourceConfig
}

// New opens a pool for the configured dialect and verifies connectivity.
// Dialects prefixed with "cloudsql" connect through the Cloud SQL
// connector instead of host and port.
func New(ctx context.Context, cfg config.SourceConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{Pool: pool, Handler: handler, Config: cfg}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	return nil
}

// schemaOrDefault lets callers omit the schema for sources with a
// conventional default (public, dbo).
func (db *DB) schemaOrDefault(schema string) string {
	if schema == "" {
		return db.Handler.DefaultSchema()
	}
	return schema
}

// ListTables returns the base tables in the given schema.
func (db *DB) ListTables(ctx context.Context, schema string) ([]string, error) {
	return db.Handler.ListTables(ctx, db, db.schemaOrDefault(schema))
}

// ListColumns returns the columns of a table in ordinal order.
func (db *DB) ListColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	return db.Handler.ListColumns(ctx, db, db.schemaOrDefault(schema), table)
}

// TableRowCount returns the exact row count of a table.
func (db *DB) TableRowCount(ctx context.Context, schema, table string) (int64, error) {
	quoted := db.quoteQualified(db.schemaOrDefault(schema), table)
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)
	if err := db.Pool.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting rows in %s: %w", quoted, err)
	}
	return count, nil
}

// TableSample reads up to limit rows from a table along with the
// table's column metadata. Values come back as the driver reports them,
// except raw byte slices which are converted to strings so the sample
// serializes cleanly.
func (db *DB) TableSample(ctx context.Context, schema, table string, limit int) (*Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	schema = db.schemaOrDefault(schema)

	columns, err := db.ListColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s has no columns or does not exist", schema, table)
	}

	query := db.Handler.SampleQuery(db.quoteQualified(schema, table), limit)
	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error sampling table %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	resultColumns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading result columns: %w", err)
	}

	sample := &Sample{Columns: columns, Rows: make([]map[string]interface{}, 0, limit)}
	for rows.Next() {
		values := make([]interface{}, len(resultColumns))
		pointers := make([]interface{}, len(resultColumns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("error scanning sample row: %w", err)
		}

		row := make(map[string]interface{}, len(resultColumns))
		for i, name := range resultColumns {
			row[name] = normalizeValue(values[i])
		}
		sample.Rows = append(sample.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sample rows: %w", err)
	}

	return sample, nil
}

func (db *DB) quoteQualified(schema, table string) string {
	if schema == "" {
		return db.Handler.QuoteIdentifier(table)
	}
	return db.Handler.QuoteIdentifier(schema) + "." + db.Handler.QuoteIdentifier(table)
}

func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
