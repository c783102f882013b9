package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ProfilingRun is one externally produced profiling payload for a table.
type ProfilingRun struct {
	ID         string          `json:"id"`
	SourceID   string          `json:"source_id"`
	SchemaName string          `json:"schema_name"`
	TableName  string          `json:"table_name"`
	Profiles   []ColumnProfile `json:"column_profiles"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ColumnProfile is one column's profiling metrics within a run.
type ColumnProfile struct {
	ColumnName string                 `json:"column_name"`
	Metrics    map[string]interface{} `json:"metrics"`
}

// SaveProfilingRun persists a profiling payload and its per-column
// metrics in one transaction.
func (s *Store) SaveProfilingRun(ctx context.Context, run *ProfilingRun) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiling_runs (id, source_id, schema_name, table_name)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.SourceID, run.SchemaName, run.TableName); err != nil {
		return fmt.Errorf("inserting profiling run: %w", err)
	}

	for _, p := range run.Profiles {
		metrics, err := json.Marshal(p.Metrics)
		if err != nil {
			return fmt.Errorf("marshaling metrics for column %s: %w", p.ColumnName, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO column_profiles (run_id, column_name, metrics)
			VALUES ($1, $2, $3)`,
			run.ID, p.ColumnName, metrics); err != nil {
			return fmt.Errorf("inserting profile for column %s: %w", p.ColumnName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListProfilingRuns returns profiling runs for a table, newest first,
// without their column payloads.
func (s *Store) ListProfilingRuns(ctx context.Context, schemaName, tableName string) ([]ProfilingRun, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT id, source_id, schema_name, table_name, created_at
		FROM profiling_runs
		WHERE ($1 = '' OR schema_name = $1)
		AND ($2 = '' OR table_name = $2)
		ORDER BY created_at DESC`,
		schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying profiling runs: %w", err)
	}
	defer rows.Close()

	var runs []ProfilingRun
	for rows.Next() {
		var pr ProfilingRun
		if err := rows.Scan(&pr.ID, &pr.SourceID, &pr.SchemaName, &pr.TableName, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning profiling run: %w", err)
		}
		runs = append(runs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profiling runs: %w", err)
	}
	return runs, nil
}
