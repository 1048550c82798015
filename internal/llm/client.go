// Package llm defines the completion-service capability consumed by the
// PA pipeline: a standard-latency chat tier and a high-reasoning tier.
package llm

import (
	"context"
	"encoding/json"
)

// FailureReason classifies a completion failure so callers can branch on it
// instead of catching broad errors.
type FailureReason string

const (
	// FailureNone means the call succeeded.
	FailureNone FailureReason = ""

	// FailureContextLength means prompt + policy text exceeded the model's
	// input window. Recoverable by summarizing the policy and retrying.
	FailureContextLength FailureReason = "context_length_exceeded"

	// FailureTransient covers rate limits, timeouts, and 5xx responses.
	FailureTransient FailureReason = "transient"

	// FailureFatal covers everything that retrying will not fix.
	FailureFatal FailureReason = "fatal"
)

// ResponseFormat values accepted by ChatRequest.
const (
	FormatJSON = "json_object"
	FormatText = "text"
)

// Message is one exchange in a conversation history.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// SamplingParams are the generation knobs forwarded to the standard tier.
// The reasoning tier ignores them.
type SamplingParams struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
	Seed             int64   `json:"seed"`
}

// ChatRequest is a request to the completion service.
type ChatRequest struct {
	System         string         // System prompt (ignored by the reasoning tier)
	Prompt         string         // User prompt
	ImagePaths     []string       // Page images for vision extraction
	ResponseFormat string         // FormatJSON or FormatText
	MaxTokens      int            // Completion token limit
	Sampling       SamplingParams // Standard-tier sampling
	RequestID      string         // Optional; generated if empty
}

// ChatResult is the outcome of a completion call. Failure is set instead of
// returning an error for conditions the caller is expected to branch on.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"`
	History    []Message       `json:"history"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Failure      FailureReason `json:"failure,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Ok reports whether the call produced usable content.
func (r *ChatResult) Ok() bool {
	return r != nil && r.Failure == FailureNone
}

// Client is the completion service consumed by the pipeline.
type Client interface {
	// Chat sends a request to the standard tier.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// ChatReasoning sends a request to the high-reasoning tier. The tier
	// uses a completion-token limit of its own and ignores sampling params.
	ChatReasoning(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "azure").
	Name() string
}
