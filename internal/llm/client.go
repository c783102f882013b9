// Package llm abstracts over interchangeable text-generation backends.
// A Client is selected once by provider name; backend failures propagate
// to the caller untouched, and no retries happen at this layer.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Supported provider names.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// generationTemperature favors deterministic output over creativity and
// is fixed for every backend.
const generationTemperature = 0.3

// Client defines the interface for interacting with a generative model:
// one system instruction plus one user instruction in, raw text out.
type Client interface {
	// Generate sends the prompts and returns the generated text. Backend
	// failures (auth, network, rate limit) are returned as-is.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Provider returns the configured provider name.
	Provider() string

	// Model returns the configured model name.
	Model() string
}

// Config holds provider selection and credentials for the client.
type Config struct {
	Provider        string
	Model           string
	GroqAPIKey      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string
}

// ConfigError reports an unusable backend configuration. It is raised
// before any network call and is not retryable.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm configuration error: %s", e.Msg)
}

// NewClient builds the client for the configured provider. Unknown
// providers and missing credentials fail here, never at generation time.
func NewClient(cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, &ConfigError{Msg: "groq API key is missing"}
		}
		return newChatCompletionsClient(ProviderGroq, groqBaseURL, cfg.GroqAPIKey, cfg.Model, groqMaxTokens), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, &ConfigError{Msg: "openai API key is missing"}
		}
		return newChatCompletionsClient(ProviderOpenAI, openAIBaseURL, cfg.OpenAIAPIKey, cfg.Model, defaultMaxTokens), nil
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, &ConfigError{Msg: "anthropic API key is missing"}
		}
		return newAnthropicClient(cfg.AnthropicAPIKey, cfg.Model), nil
	case ProviderOllama:
		return newOllamaClient(cfg.OllamaHost, cfg.Model), nil
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, &ConfigError{Msg: "gemini API key is missing"}
		}
		return newGeminiClient(cfg.GeminiAPIKey, cfg.Model), nil
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unsupported provider: %q (supported: %s)",
			cfg.Provider, strings.Join([]string{ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGemini}, ", "))}
	}
}
