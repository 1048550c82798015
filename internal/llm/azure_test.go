package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *AzureClient {
	return NewAzureClient(AzureConfig{
		Endpoint:            url,
		APIKey:              "test-key",
		Deployment:          "gpt-4o",
		ReasoningDeployment: "o1",
		MaxRetries:          3,
		RetryDelay:          time.Millisecond,
	})
}

func completionBody(content string) string {
	resp := map[string]any{
		"id":    "cmpl-1",
		"model": "gpt-4o",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestChatSuccess(t *testing.T) {
	var gotPath string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("approved")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{
		System: "you are a reviewer",
		Prompt: "decide",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if !result.Ok() {
		t.Fatalf("expected success, got failure %q", result.Failure)
	}
	if result.Content != "approved" {
		t.Errorf("content = %q, want approved", result.Content)
	}
	if gotPath != "/openai/deployments/gpt-4o/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api-key header = %q", gotKey)
	}
	// system + user + assistant
	if len(result.History) != 3 {
		t.Errorf("history length = %d, want 3", len(result.History))
	}
}

func TestChatReasoningUsesReasoningDeployment(t *testing.T) {
	var gotPath string
	var gotBody chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ChatReasoning(context.Background(), &ChatRequest{
		System: "ignored on this tier",
		Prompt: "decide",
	})
	if err != nil {
		t.Fatalf("ChatReasoning() error: %v", err)
	}
	if gotPath != "/openai/deployments/o1/chat/completions" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody.MaxCompletionTokens == 0 {
		t.Error("expected max_completion_tokens to be set")
	}
	if gotBody.MaxTokens != 0 {
		t.Error("reasoning tier should not set max_tokens")
	}
	for _, m := range gotBody.Messages {
		if m.Role == "system" {
			t.Error("reasoning tier should not send a system message")
		}
	}
}

func TestChatContextLengthOverflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"context_length_exceeded","message":"This model's maximum context length is 128000 tokens."}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{Prompt: "huge"})
	if err != nil {
		t.Fatalf("overflow should not be an error, got: %v", err)
	}
	if result.Failure != FailureContextLength {
		t.Errorf("failure = %q, want %q", result.Failure, FailureContextLength)
	}
}

func TestChatRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody("after retries")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{Prompt: "decide"})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if result.Content != "after retries" {
		t.Errorf("content = %q", result.Content)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestChatExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{Prompt: "decide"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if result.Failure != FailureTransient {
		t.Errorf("failure = %q, want %q", result.Failure, FailureTransient)
	}
}

func TestChatNonRetryableError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{Prompt: "decide"})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Failure != FailureFatal {
		t.Errorf("failure = %q, want %q", result.Failure, FailureFatal)
	}
	if calls.Load() != 1 {
		t.Errorf("401 should not be retried, calls = %d", calls.Load())
	}
}

func TestChatParsesJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("```json\n{\"optimized_query\": \"adalimumab crohns\"}\n```")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{
		Prompt:         "expand",
		ResponseFormat: FormatJSON,
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	var parsed map[string]string
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if parsed["optimized_query"] != "adalimumab crohns" {
		t.Errorf("parsed = %v", parsed)
	}
}

func TestChatVisionPayload(t *testing.T) {
	img := t.TempDir() + "/page_0001.png"
	if err := os.WriteFile(img, []byte("fake-png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Chat(context.Background(), &ChatRequest{
		Prompt:     "extract",
		ImagePaths: []string{img},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	msgs := raw["messages"].([]any)
	user := msgs[len(msgs)-1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected 2 content parts, got %v", user["content"])
	}
	imgPart := parts[1].(map[string]any)
	url := imgPart["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
}
