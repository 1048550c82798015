package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const MockClientName = "mock"

// MockClient is a Client for testing. Results can be scripted per call with
// Enqueue; when the script is empty it falls back to the configured defaults.
type MockClient struct {
	// Configurable defaults
	ResponseText string
	ResponseJSON string
	ShouldFail   bool

	mu     sync.Mutex
	script []scripted

	chatCount      atomic.Int64
	reasoningCount atomic.Int64
}

type scripted struct {
	result *ChatResult
	err    error
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{ResponseText: "mock response"}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Enqueue scripts the result of the next un-scripted call.
func (c *MockClient) Enqueue(result *ChatResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, scripted{result: result, err: err})
}

// Chat sends a mock standard-tier request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	c.chatCount.Add(1)
	return c.next(ctx, req)
}

// ChatReasoning sends a mock reasoning-tier request.
func (c *MockClient) ChatReasoning(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	c.reasoningCount.Add(1)
	return c.next(ctx, req)
}

func (c *MockClient) next(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.script) > 0 {
		s := c.script[0]
		c.script = c.script[1:]
		c.mu.Unlock()
		return s.result, s.err
	}
	c.mu.Unlock()

	if c.ShouldFail {
		return &ChatResult{
			Failure:      FailureFatal,
			ErrorMessage: "mock client configured to fail",
			Provider:     MockClientName,
		}, fmt.Errorf("mock client configured to fail")
	}

	result := &ChatResult{
		Content:  c.ResponseText,
		Provider: MockClientName,
		Attempts: 1,
		History: []Message{
			{Role: "user", Content: req.Prompt},
			{Role: "assistant", Content: c.ResponseText},
		},
	}
	if req.ResponseFormat == FormatJSON && c.ResponseJSON != "" {
		result.Content = c.ResponseJSON
		result.ParsedJSON = []byte(c.ResponseJSON)
	}
	return result, nil
}

// ChatCount returns the number of standard-tier calls.
func (c *MockClient) ChatCount() int64 { return c.chatCount.Load() }

// ReasoningCount returns the number of reasoning-tier calls.
func (c *MockClient) ReasoningCount() int64 { return c.reasoningCount.Load() }

// Verify interface
var _ Client = (*MockClient)(nil)
