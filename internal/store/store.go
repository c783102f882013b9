// Package store persists suggestion runs, profiling results, and reads
// the discovery catalog from Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/suggest"
)

// ErrNotFound reports a lookup for a row that does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a Postgres pool.
type Store struct {
	pool   *sql.DB
	logger *zap.Logger
}

// New builds a Store over an open pool. The pool stays owned by the
// caller.
func New(pool *sql.DB, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// RunSummary is a stored run without its findings payload.
type RunSummary struct {
	ID               string    `json:"run_id"`
	SourceKey        string    `json:"source_key"`
	SchemaName       string    `json:"schema_name"`
	TableName        string    `json:"table_name"`
	RowCountAnalyzed int       `json:"row_count_analyzed"`
	ModelUsed        string    `json:"model_used"`
	FindingCount     int       `json:"finding_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// SaveRun persists a run and its findings in one transaction. Saving
// the same run id twice is a no-op, so retried requests never double
// up findings.
func (s *Store) SaveRun(ctx context.Context, run *suggest.Run) error {
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling run metadata: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO suggestion_runs (run_id, source_key, schema_name, table_name, row_count_analyzed, model_used, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING`,
		run.ID, run.SourceKey, run.SchemaName, run.TableName, run.RowCountAnalyzed, run.ModelUsed, metadata)
	if err != nil {
		return fmt.Errorf("inserting suggestion run: %w", err)
	}
	if inserted, err := result.RowsAffected(); err == nil && inserted == 0 {
		s.logger.Info("suggestion run already stored", zap.String("run_id", run.ID))
		return nil
	}

	for i, f := range run.Findings {
		issues, err := json.Marshal(f.Issues)
		if err != nil {
			return fmt.Errorf("marshaling issues for column %s: %w", f.Column, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suggestion_findings (run_id, position, column_name, issues, recommendation, severity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			run.ID, i, f.Column, issues, f.Recommendation, string(f.Severity)); err != nil {
			return fmt.Errorf("inserting finding for column %s: %w", f.Column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListRuns returns stored run summaries, newest first. Empty filters
// match everything.
func (s *Store) ListRuns(ctx context.Context, sourceKey, tableName string) ([]RunSummary, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT r.run_id, r.source_key, r.schema_name, r.table_name, r.row_count_analyzed, r.model_used, r.created_at,
		       (SELECT COUNT(*) FROM suggestion_findings f WHERE f.run_id = r.run_id)
		FROM suggestion_runs r
		WHERE ($1 = '' OR r.source_key = $1)
		AND ($2 = '' OR r.table_name = $2)
		ORDER BY r.created_at DESC`,
		sourceKey, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying suggestion runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.ID, &rs.SourceKey, &rs.SchemaName, &rs.TableName,
			&rs.RowCountAnalyzed, &rs.ModelUsed, &rs.CreatedAt, &rs.FindingCount); err != nil {
			return nil, fmt.Errorf("scanning suggestion run: %w", err)
		}
		summaries = append(summaries, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestion runs: %w", err)
	}
	return summaries, nil
}

// GetRun fetches a stored run with its findings in saved order.
func (s *Store) GetRun(ctx context.Context, runID string) (*suggest.Run, error) {
	run := &suggest.Run{ID: runID}
	var metadata []byte
	err := s.pool.QueryRowContext(ctx, `
		SELECT source_key, schema_name, table_name, row_count_analyzed, model_used, metadata
		FROM suggestion_runs
		WHERE run_id = $1`, runID).
		Scan(&run.SourceKey, &run.SchemaName, &run.TableName, &run.RowCountAnalyzed, &run.ModelUsed, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suggestion run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying suggestion run %s: %w", runID, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling run metadata: %w", err)
		}
	}

	rows, err := s.pool.QueryContext(ctx, `
		SELECT column_name, issues, recommendation, severity
		FROM suggestion_findings
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying findings for run %s: %w", runID, err)
	}
	defer rows.Close()

	run.Findings = []suggest.Finding{}
	for rows.Next() {
		var f suggest.Finding
		var issues []byte
		var severity string
		if err := rows.Scan(&f.Column, &issues, &f.Recommendation, &severity); err != nil {
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		if err := json.Unmarshal(issues, &f.Issues); err != nil {
			return nil, fmt.Errorf("unmarshaling issues for column %s: %w", f.Column, err)
		}
		f.Severity = suggest.Severity(severity)
		run.Findings = append(run.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}
	return run, nil
}
