package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DiscoveryRecord is one catalog snapshot from a connected source. The
// Schemas payload is the raw JSONB document written by the discovery
// job; internal/discovery knows its shape.
type DiscoveryRecord struct {
	ID        string          `json:"id"`
	SourceID  string          `json:"source_id"`
	Schemas   json.RawMessage `json:"schemas"`
	Timestamp time.Time       `json:"timestamp"`
}

// QueryDiscoveryData returns discovery records ordered newest first.
// schemaFilter matches schema names inside the JSONB payload; sourceID
// matches exactly. Empty filters match everything.
func (s *Store) QueryDiscoveryData(ctx context.Context, schemaFilter, sourceID string) ([]DiscoveryRecord, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT id, source_id, schemas, timestamp
		FROM discovery_data
		WHERE ($1 = '' OR schemas::text LIKE '%"schema_name": "' || $1 || '"%')
		AND ($2 = '' OR source_id = $2)
		ORDER BY timestamp DESC`,
		schemaFilter, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying discovery data: %w", err)
	}
	defer rows.Close()

	var records []DiscoveryRecord
	for rows.Next() {
		var rec DiscoveryRecord
		var schemas []byte
		if err := rows.Scan(&rec.ID, &rec.SourceID, &schemas, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning discovery record: %w", err)
		}
		rec.Schemas = json.RawMessage(schemas)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating discovery records: %w", err)
	}
	return records, nil
}
