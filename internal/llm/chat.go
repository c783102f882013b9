package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"

	groqMaxTokens    = 8192
	defaultMaxTokens = 2000
)

// chatCompletionsClient speaks the OpenAI chat-completions wire format,
// which Groq exposes verbatim under its own base URL.
type chatCompletionsClient struct {
	provider  string
	baseURL   string
	apiKey    string
	model     string
	maxTokens int

	initOnce   sync.Once
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func newChatCompletionsClient(provider, baseURL, apiKey, model string, maxTokens int) *chatCompletionsClient {
	return &chatCompletionsClient{
		provider:  provider,
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *chatCompletionsClient) Provider() string { return c.provider }
func (c *chatCompletionsClient) Model() string    { return c.model }

func (c *chatCompletionsClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.initOnce.Do(func() {
		c.httpClient = &http.Client{Timeout: 120 * time.Second}
	})

	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: generationTemperature,
		MaxTokens:   c.maxTokens,
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s API request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s API response read failed: %w", c.provider, err)
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%s API returned unparseable body (status %d): %w", c.provider, resp.StatusCode, err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.provider, response.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API returned status %d", c.provider, resp.StatusCode)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%s API returned no choices", c.provider)
	}

	return response.Choices[0].Message.Content, nil
}
