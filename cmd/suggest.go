package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/analyzer"
	"github.com/qupid/dq-suggestions/internal/llm"
	"github.com/qupid/dq-suggestions/internal/suggest"
	"github.com/qupid/dq-suggestions/internal/utils"
)

var (
	suggestSchema string
	suggestTable  string
	suggestLimit  int
	outputFile    string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Generate data-quality suggestions for one table",
	Long: `suggest samples the given table, runs the analysis and generation
pipeline once, and writes the resulting run as JSON.`,
	RunE: runSuggest,
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if suggestTable == "" {
		return fmt.Errorf("--table is required")
	}

	sourceDB, err := setupSource(cmd)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	sample, err := sourceDB.TableSample(cmd.Context(), suggestSchema, suggestTable, suggestLimit)
	if err != nil {
		return fmt.Errorf("sampling table: %w", err)
	}

	client, err := llm.NewClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		Model:           cfg.LLM.Model,
		GroqAPIKey:      cfg.LLM.GroqAPIKey,
		OpenAIAPIKey:    cfg.LLM.OpenAIAPIKey,
		AnthropicAPIKey: cfg.LLM.AnthropicAPIKey,
		GeminiAPIKey:    cfg.LLM.GeminiAPIKey,
		OllamaHost:      cfg.LLM.OllamaHost,
	})
	if err != nil {
		return err
	}

	columns := make([]analyzer.Column, len(sample.Columns))
	for i, c := range sample.Columns {
		columns[i] = analyzer.Column{Name: c.Name, Type: c.DataType}
	}
	rows := make([]analyzer.Row, len(sample.Rows))
	for i, r := range sample.Rows {
		rows[i] = analyzer.Row(r)
	}

	svc := suggest.NewService(client, logger)
	run, err := svc.Generate(cmd.Context(), suggest.Request{
		SourceKey:  cfg.Source.DBName,
		SchemaName: suggestSchema,
		TableName:  suggestTable,
		Columns:    columns,
		Rows:       rows,
	})
	if err != nil {
		return err
	}

	run.ID = uuid.NewString()
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	path := outputFile
	if path == "" {
		path = utils.DefaultOutputFilePath(suggestSchema, suggestTable)
	}
	if err := utils.WriteOutputFile(path, data); err != nil {
		return err
	}

	logger.Info("suggestion run written",
		zap.String("path", path),
		zap.String("run_id", run.ID),
		zap.Int("findings", len(run.Findings)))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d findings to %s\n", len(run.Findings), path)
	return nil
}

func init() {
	suggestCmd.Flags().StringVar(&suggestSchema, "schema", "", "Schema of the table to analyze")
	suggestCmd.Flags().StringVar(&suggestTable, "table", "", "Table to analyze (required)")
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 100, "Maximum rows to sample")
	suggestCmd.Flags().StringVar(&outputFile, "output-file", "", "Output path (defaults to <schema>_<table>_suggestions.json)")
}
