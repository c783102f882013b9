package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultOllamaHost = "http://localhost:11434"

// ollamaClient talks to a locally hosted Ollama runtime. No credentials
// are required; the host defaults to the standard local port.
type ollamaClient struct {
	host  string
	model string

	initOnce   sync.Once
	httpClient *http.Client
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func newOllamaClient(host, model string) *ollamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	return &ollamaClient{host: strings.TrimRight(host, "/"), model: model}
}

func (c *ollamaClient) Provider() string { return ProviderOllama }
func (c *ollamaClient) Model() string    { return c.model }

func (c *ollamaClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.initOnce.Do(func() {
		// Local models can be slow to evaluate long prompts.
		c.httpClient = &http.Client{Timeout: 300 * time.Second}
	})

	request := ollamaRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Options: ollamaOptions{Temperature: generationTemperature},
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama response read failed: %w", err)
	}

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("ollama returned unparseable body (status %d): %w", resp.StatusCode, err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama error: %s", response.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	return response.Message.Content, nil
}
