package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"research-portal/internal/llm"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, func() map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var last map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		last = payload
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	server, lastBody := newTestServer(t, http.StatusOK, `{
		"model": "gpt-4-turbo-preview",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "[{\"lineItem\":\"Revenue\"}]"}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
	}`)

	client, err := NewClient("test-key", "gpt-4-turbo-preview", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), llm.Request{Prompt: "extract please", Temperature: llm.Temperature(0.2)})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `[{"lineItem":"Revenue"}]` {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 30 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}

	body := lastBody()
	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", body["messages"])
	}
	system := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != llm.SystemPrompt {
		t.Fatalf("unexpected system message %v", system)
	}
	user := messages[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "extract please" {
		t.Fatalf("unexpected user message %v", user)
	}
	if body["max_tokens"] != float64(llm.DefaultMaxTokens) {
		t.Fatalf("expected max_tokens %d, got %v", llm.DefaultMaxTokens, body["max_tokens"])
	}
	temp, _ := body["temperature"].(float64)
	if temp < 0.19 || temp > 0.21 {
		t.Fatalf("expected temperature 0.2, got %v", body["temperature"])
	}
}

func TestCompleteMapsAPIErrorToUpstreamError(t *testing.T) {
	server, _ := newTestServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`)

	client, err := NewClient("test-key", "gpt-4-turbo-preview", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Complete(context.Background(), llm.Request{Prompt: "x"})
	var up *llm.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if up.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", up.StatusCode)
	}
	if up.Message != "Rate limit reached" {
		t.Fatalf("unexpected message %q", up.Message)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server, _ := newTestServer(t, http.StatusOK, `{"choices":[]}`)

	client, err := NewClient("test-key", "gpt-4-turbo-preview", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), llm.Request{Prompt: "x"})
	var up *llm.UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		model string
	}{
		{name: "missing key", key: " ", model: "gpt-4-turbo-preview"},
		{name: "missing model", key: "k", model: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.key, tt.model)
			if !llm.IsConfigurationError(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}
