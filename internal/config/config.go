package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	Source SourceConfig
	Store  StoreConfig
	LLM    LLMConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string
	Port int
}

// SourceConfig holds the connection settings for the relational source
// that table samples are read from.
type SourceConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool
}

// StoreConfig holds the Postgres connection settings for run persistence.
type StoreConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LLMConfig holds generation backend selection and credentials. Provider
// and model are resolved once at startup; the pipeline never reads
// configuration sources itself.
type LLMConfig struct {
	Provider        string
	Model           string
	GroqAPIKey      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string
}

// Load reads configuration from an optional file plus DQS_* environment
// variables and returns the resolved Config. Flag overrides are applied
// afterwards in cmd.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("source.dialect", "postgres")
	v.SetDefault("source.host", "localhost")
	v.SetDefault("source.port", 5432)
	v.SetDefault("source.sslmode", "disable")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.dbname", "qupid")
	v.SetDefault("store.sslmode", "disable")
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.ollama_host", "http://localhost:11434")

	v.SetEnvPrefix("DQS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Source: SourceConfig{
			Dialect:                        v.GetString("source.dialect"),
			Host:                           v.GetString("source.host"),
			Port:                           v.GetInt("source.port"),
			User:                           v.GetString("source.user"),
			Password:                       v.GetString("source.password"),
			DBName:                         v.GetString("source.dbname"),
			SSLMode:                        v.GetString("source.sslmode"),
			CloudSQLInstanceConnectionName: v.GetString("source.cloudsql_instance_connection_name"),
			UsePrivateIP:                   v.GetBool("source.cloudsql_use_private_ip"),
		},
		Store: StoreConfig{
			Host:     v.GetString("store.host"),
			Port:     v.GetInt("store.port"),
			User:     v.GetString("store.user"),
			Password: v.GetString("store.password"),
			DBName:   v.GetString("store.dbname"),
			SSLMode:  v.GetString("store.sslmode"),
		},
		LLM: LLMConfig{
			Provider:        v.GetString("llm.provider"),
			Model:           v.GetString("llm.model"),
			GroqAPIKey:      v.GetString("llm.groq_api_key"),
			OpenAIAPIKey:    v.GetString("llm.openai_api_key"),
			AnthropicAPIKey: v.GetString("llm.anthropic_api_key"),
			GeminiAPIKey:    v.GetString("llm.gemini_api_key"),
			OllamaHost:      v.GetString("llm.ollama_host"),
		},
	}
	return cfg, nil
}
