package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// geminiClient uses the Google Gemini API. The SDK handle is built on
// first use and reused for the client's lifetime.
type geminiClient struct {
	apiKey string
	model  string

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

func newGeminiClient(apiKey, model string) *geminiClient {
	return &geminiClient{apiKey: apiKey, model: model}
}

func (c *geminiClient) Provider() string { return ProviderGemini }
func (c *geminiClient) Model() string    { return c.model }

func (c *geminiClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.initOnce.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	})
	if c.initErr != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", c.initErr)
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(generationTemperature)
	model.SetMaxOutputTokens(defaultMaxTokens)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return "", fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	return firstTextPart(resp)
}

// firstTextPart extracts the first text part from a Gemini response.
func firstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API (finish reason: %s)", finishReason)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}
