package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientProviderSelection(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantErr      bool
		wantProvider string
	}{
		{
			name:         "groq",
			cfg:          Config{Provider: "groq", Model: "llama-3.3-70b-versatile", GroqAPIKey: "k"},
			wantProvider: "groq",
		},
		{
			name:         "openai",
			cfg:          Config{Provider: "openai", Model: "gpt-4o-mini", OpenAIAPIKey: "k"},
			wantProvider: "openai",
		},
		{
			name:         "anthropic",
			cfg:          Config{Provider: "anthropic", Model: "claude-sonnet", AnthropicAPIKey: "k"},
			wantProvider: "anthropic",
		},
		{
			name:         "ollama needs no key",
			cfg:          Config{Provider: "ollama", Model: "llama3"},
			wantProvider: "ollama",
		},
		{
			name:         "gemini",
			cfg:          Config{Provider: "gemini", Model: "gemini-1.5-flash", GeminiAPIKey: "k"},
			wantProvider: "gemini",
		},
		{
			name:         "provider name is case insensitive",
			cfg:          Config{Provider: "  Groq ", Model: "m", GroqAPIKey: "k"},
			wantProvider: "groq",
		},
		{name: "unknown provider", cfg: Config{Provider: "bard", Model: "m"}, wantErr: true},
		{name: "empty provider", cfg: Config{}, wantErr: true},
		{name: "groq without key", cfg: Config{Provider: "groq"}, wantErr: true},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: true},
		{name: "anthropic without key", cfg: Config{Provider: "anthropic"}, wantErr: true},
		{name: "gemini without key", cfg: Config{Provider: "gemini"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewClient(%+v) expected error, got %T", tt.cfg, client)
				}
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error %v is not a *ConfigError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient(%+v) unexpected error: %v", tt.cfg, err)
			}
			if client.Provider() != tt.wantProvider {
				t.Errorf("Provider() = %q, want %q", client.Provider(), tt.wantProvider)
			}
		})
	}
}

func TestChatCompletionsClientGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "[]"}, "finish_reason": "stop"},
			},
		})
	}))
	defer srv.Close()

	client := newChatCompletionsClient("groq", srv.URL, "secret", "test-model", groqMaxTokens)
	got, err := client.Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "[]" {
		t.Errorf("Generate = %q, want %q", got, "[]")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", gotReq.Temperature)
	}
	if gotReq.MaxTokens != groqMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", gotReq.MaxTokens, groqMaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestChatCompletionsClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	}))
	defer srv.Close()

	client := newChatCompletionsClient("openai", srv.URL, "k", "m", defaultMaxTokens)
	_, err := client.Generate(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("Generate error = %v, want rate limit surfaced", err)
	}
}

func TestAnthropicClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("anthropic-version header missing")
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.System != "sys" {
			t.Errorf("System = %q, want top-level system field", req.System)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "ok"}},
		})
	}))
	defer srv.Close()

	client := newAnthropicClient("secret", "m")
	// Point the request at the stub by swapping the transport target.
	client.initOnce.Do(func() {})
	client.httpClient = srv.Client()
	client.httpClient.Transport = rewriteHost(srv.URL)

	got, err := client.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" {
		t.Errorf("Generate = %q, want %q", got, "ok")
	}
}

func TestOllamaClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Stream {
			t.Errorf("streaming must be disabled")
		}
		if req.Options.Temperature != 0.3 {
			t.Errorf("Temperature = %v, want 0.3", req.Options.Temperature)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "local"},
		})
	}))
	defer srv.Close()

	client := newOllamaClient(srv.URL, "llama3")
	got, err := client.Generate(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "local" {
		t.Errorf("Generate = %q, want %q", got, "local")
	}
}

// rewriteHost redirects every request to the test server regardless of
// the hardcoded production base URL.
type hostRewriter struct {
	target string
}

func rewriteHost(target string) http.RoundTripper {
	return &hostRewriter{target: strings.TrimPrefix(target, "http://")}
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = h.target
	return http.DefaultTransport.RoundTrip(req)
}
