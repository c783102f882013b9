package suggest

import (
	"fmt"
	"strings"
)

// Severity grades how urgently a finding should be acted on.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Valid reports whether the value is one of the accepted grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium:
		return true
	}
	return false
}

// Finding is one data-quality observation for a single column.
type Finding struct {
	Column         string   `json:"column"`
	Issues         []string `json:"issues"`
	Recommendation string   `json:"recommendation"`
	Severity       Severity `json:"severity"`
}

// validate enforces the schema every stored finding must satisfy.
func (f *Finding) validate() error {
	if strings.TrimSpace(f.Column) == "" {
		return fmt.Errorf("finding has empty column name")
	}
	if len(f.Issues) == 0 {
		return fmt.Errorf("finding for column %q has no issues", f.Column)
	}
	for i, issue := range f.Issues {
		if strings.TrimSpace(issue) == "" {
			return fmt.Errorf("finding for column %q has empty issue at index %d", f.Column, i)
		}
	}
	if strings.TrimSpace(f.Recommendation) == "" {
		return fmt.Errorf("finding for column %q has empty recommendation", f.Column)
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("finding for column %q has unknown severity %q", f.Column, f.Severity)
	}
	return nil
}

// Run is the complete outcome of one suggestion request: the validated
// findings plus enough context to reproduce or audit the run. ID is
// empty until the run is persisted or published; the pipeline itself
// never assigns one.
type Run struct {
	ID               string                 `json:"run_id,omitempty"`
	SourceKey        string                 `json:"source_key,omitempty"`
	SchemaName       string                 `json:"schema_name"`
	TableName        string                 `json:"table_name"`
	Findings         []Finding              `json:"suggestions"`
	RowCountAnalyzed int                    `json:"row_count_analyzed"`
	ModelUsed        string                 `json:"model_used"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}
