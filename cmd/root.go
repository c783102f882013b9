package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/config"
	"github.com/qupid/dq-suggestions/internal/logging"
	"github.com/qupid/dq-suggestions/internal/source"
	_ "github.com/qupid/dq-suggestions/internal/source/mysql"
	_ "github.com/qupid/dq-suggestions/internal/source/postgres"
	_ "github.com/qupid/dq-suggestions/internal/source/sqlserver"
)

var (
	cfgFile  string
	logLevel string
	logDev   bool

	// Source connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	sslMode                        string
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool

	// Generation backend flags
	provider        string
	model           string
	groqAPIKey      string
	openAIAPIKey    string
	anthropicAPIKey string
	geminiAPIKey    string
	ollamaHost      string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dq-suggestions",
	Short: "Data-quality suggestions for profiled tables",
	Long: `dq-suggestions samples tables from a relational source, analyzes the
sample deterministically, and asks a generation backend for reviewable
data-quality findings.`,
	PersistentPreRunE: initConfigAndLogger,
	SilenceUsage:      true,
}

// initConfigAndLogger resolves configuration (file, env, then flags)
// and builds the process logger.
func initConfigAndLogger(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	applyString := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}

	applyString("dialect", &loaded.Source.Dialect, dialect)
	applyString("host", &loaded.Source.Host, host)
	if flags.Changed("port") {
		loaded.Source.Port = port
	}
	applyString("username", &loaded.Source.User, username)
	applyString("password", &loaded.Source.Password, password)
	applyString("database", &loaded.Source.DBName, dbName)
	applyString("sslmode", &loaded.Source.SSLMode, sslMode)
	applyString("cloudsql-instance-connection-name", &loaded.Source.CloudSQLInstanceConnectionName, cloudSQLInstanceConnectionName)
	if flags.Changed("cloudsql-use-private-ip") {
		loaded.Source.UsePrivateIP = cloudSQLUsePrivateIP
	}

	applyString("provider", &loaded.LLM.Provider, provider)
	applyString("model", &loaded.LLM.Model, model)
	applyString("groq-api-key", &loaded.LLM.GroqAPIKey, groqAPIKey)
	applyString("openai-api-key", &loaded.LLM.OpenAIAPIKey, openAIAPIKey)
	applyString("anthropic-api-key", &loaded.LLM.AnthropicAPIKey, anthropicAPIKey)
	applyString("gemini-api-key", &loaded.LLM.GeminiAPIKey, geminiAPIKey)
	applyString("ollama-host", &loaded.LLM.OllamaHost, ollamaHost)

	if err := validateDialect(loaded.Source.Dialect); err != nil {
		return err
	}

	logger, err = logging.New(logLevel, logDev)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	cfg = loaded
	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}
	for _, supported := range supportedDialects {
		if dialect == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupSource(cmd *cobra.Command) (*source.DB, error) {
	db, err := source.New(cmd.Context(), cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}
	return db, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDev, "log-dev", false, "Use human-readable development logging")

	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", fmt.Sprintf("Source dialect (%s)", strings.Join([]string{"postgres", "mysql", "sqlserver", "cloudsqlpostgres", "cloudsqlmysql", "cloudsqlsqlserver"}, ", ")))
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Source database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Source database port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Source database username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Source database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "database", "", "Source database name")
	rootCmd.PersistentFlags().StringVar(&sslMode, "sslmode", "", "Source SSL mode (postgres dialects)")
	rootCmd.PersistentFlags().StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (Cloud SQL dialects)")
	rootCmd.PersistentFlags().BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection")

	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "Generation provider (groq, openai, anthropic, ollama, gemini)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Generation model name")
	rootCmd.PersistentFlags().StringVar(&groqAPIKey, "groq-api-key", "", "Groq API key (or DQS_LLM_GROQ_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&openAIAPIKey, "openai-api-key", "", "OpenAI API key (or DQS_LLM_OPENAI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&anthropicAPIKey, "anthropic-api-key", "", "Anthropic API key (or DQS_LLM_ANTHROPIC_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&geminiAPIKey, "gemini-api-key", "", "Gemini API key (or DQS_LLM_GEMINI_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&ollamaHost, "ollama-host", "", "Ollama host URL (defaults to http://localhost:11434)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(suggestCmd)
}
