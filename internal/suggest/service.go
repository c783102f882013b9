// Package suggest runs the suggestion pipeline end to end: deterministic
// sample analysis, prompt assembly, a generation call, and strict
// validation of the model's findings.
package suggest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/analyzer"
	"github.com/qupid/dq-suggestions/internal/llm"
	"github.com/qupid/dq-suggestions/internal/prompt"
)

// Request identifies a table and carries the sample to analyze.
type Request struct {
	SourceKey  string
	SchemaName string
	TableName  string
	Columns    []analyzer.Column
	Rows       []analyzer.Row
}

// Service orchestrates the suggestion pipeline against one generation
// backend. Generation faults are retried; parse faults are not.
type Service struct {
	client llm.Client
	logger *zap.Logger
	retry  RetryOptions
}

// NewService builds a Service around the given generation client.
func NewService(client llm.Client, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		retry:  DefaultRetryOptions,
	}
}

// Generate runs the full pipeline and returns the validated run. The
// returned run carries no identity: given the same request and the same
// backend output it is identical call to call. Callers that persist or
// publish a run assign its id at that boundary.
func (s *Service) Generate(ctx context.Context, req Request) (*Run, error) {
	if req.TableName == "" {
		return nil, &ErrInvalidInput{Msg: "table name is required"}
	}
	if len(req.Columns) == 0 {
		return nil, &ErrInvalidInput{Msg: fmt.Sprintf("no columns provided for table %s", req.TableName)}
	}

	stats := analyzer.Analyze(req.Columns, req.Rows)
	userPrompt := prompt.BuildUserPrompt(prompt.TableIdentity{
		SchemaName: req.SchemaName,
		TableName:  req.TableName,
	}, req.Columns, req.Rows, stats)

	s.logger.Info("requesting suggestions",
		zap.String("schema", req.SchemaName),
		zap.String("table", req.TableName),
		zap.Int("rows", len(req.Rows)),
		zap.Int("columns", len(req.Columns)),
		zap.String("provider", s.client.Provider()),
		zap.String("model", s.client.Model()))

	raw, err := withRetry(ctx, s.retry, s.logger, func(ctx context.Context) (string, error) {
		text, genErr := s.client.Generate(ctx, prompt.SystemPrompt, userPrompt)
		if genErr != nil {
			return "", &ErrGeneration{Msg: fmt.Sprintf("%s backend call failed", s.client.Provider()), Err: genErr}
		}
		return text, nil
	})
	if err != nil {
		return nil, err
	}

	findings, err := ParseFindings(raw, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Info("suggestions generated",
		zap.String("table", req.TableName),
		zap.Int("findings", len(findings)))

	return &Run{
		SourceKey:        req.SourceKey,
		SchemaName:       req.SchemaName,
		TableName:        req.TableName,
		Findings:         findings,
		RowCountAnalyzed: len(req.Rows),
		ModelUsed:        fmt.Sprintf("%s/%s", s.client.Provider(), s.client.Model()),
		Metadata: map[string]interface{}{
			"column_count": len(req.Columns),
			"provider":     s.client.Provider(),
		},
	}, nil
}
