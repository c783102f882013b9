// Package discovery interprets catalog snapshots written by the
// discovery job: a JSONB document per source listing its schemas,
// tables, and columns.
package discovery

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/store"
)

// TableInfo locates one discovered table.
type TableInfo struct {
	SourceID   string       `json:"source_id"`
	SchemaName string       `json:"schema_name"`
	TableName  string       `json:"table_name"`
	Columns    []ColumnInfo `json:"columns"`
}

// ColumnInfo is a discovered column with its reported type.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type schemasPayload struct {
	Schemas []struct {
		SchemaName string `json:"schema_name"`
		Tables     []struct {
			TableName string       `json:"table_name"`
			Columns   []ColumnInfo `json:"columns"`
		} `json:"tables"`
	} `json:"schemas"`
}

// TablesFromRecords flattens discovery records into tables. Records
// arrive newest first; only the newest record per source is read, so a
// source whose later snapshots cover fewer schemas under-reports until
// the next full discovery run.
func TablesFromRecords(records []store.DiscoveryRecord, schemaFilter, tableFilter string, logger *zap.Logger) ([]TableInfo, error) {
	seen := make(map[string]bool)
	var tables []TableInfo

	for _, rec := range records {
		if seen[rec.SourceID] {
			continue
		}
		seen[rec.SourceID] = true

		var payload schemasPayload
		if err := json.Unmarshal(rec.Schemas, &payload); err != nil {
			return nil, fmt.Errorf("parsing schemas payload of discovery record %s: %w", rec.ID, err)
		}

		for _, schema := range payload.Schemas {
			if schemaFilter != "" && schema.SchemaName != schemaFilter {
				continue
			}
			for _, table := range schema.Tables {
				if tableFilter != "" && table.TableName != tableFilter {
					continue
				}
				tables = append(tables, TableInfo{
					SourceID:   rec.SourceID,
					SchemaName: schema.SchemaName,
					TableName:  table.TableName,
					Columns:    table.Columns,
				})
			}
		}
	}

	logger.Info("discovered tables resolved",
		zap.Int("records", len(records)),
		zap.Int("tables", len(tables)))
	return tables, nil
}
