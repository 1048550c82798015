package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const AzureClientName = "azure"

// contextLengthMarker appears in the provider's 400 body when the prompt
// exceeds the model input window.
const contextLengthMarker = "maximum context length"

// AzureConfig holds configuration for the Azure OpenAI-style client.
type AzureConfig struct {
	Endpoint           string // e.g. https://myresource.openai.azure.com
	APIKey             string
	Deployment         string // standard-tier chat deployment
	ReasoningDeployment string // high-reasoning deployment
	APIVersion         string
	ReasoningMaxTokens int // max_completion_tokens for the reasoning tier
	Timeout            time.Duration
	MaxRetries         int           // transient retry attempts
	RetryDelay         time.Duration // base delay between retries
}

// AzureClient implements Client against a deployments-style chat API.
type AzureClient struct {
	endpoint            string
	apiKey              string
	deployment          string
	reasoningDeployment string
	apiVersion          string
	reasoningMaxTokens  int
	client              *http.Client
	maxRetries          int
	retryDelay          time.Duration
}

// NewAzureClient creates a new client for the completion service.
func NewAzureClient(cfg AzureConfig) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-08-01-preview"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.ReasoningMaxTokens == 0 {
		cfg.ReasoningMaxTokens = 15000
	}

	return &AzureClient{
		endpoint:            strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:              cfg.APIKey,
		deployment:          cfg.Deployment,
		reasoningDeployment: cfg.ReasoningDeployment,
		apiVersion:          cfg.APIVersion,
		reasoningMaxTokens:  cfg.ReasoningMaxTokens,
		client:              &http.Client{Timeout: cfg.Timeout},
		maxRetries:          cfg.MaxRetries,
		retryDelay:          cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *AzureClient) Name() string {
	return AzureClientName
}

// Chat sends a chat completion request to the standard tier.
func (c *AzureClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doChat(ctx, req, c.deployment, false)
}

// ChatReasoning sends a request to the high-reasoning tier. The tier takes
// no system message or sampling params and uses max_completion_tokens.
func (c *AzureClient) ChatReasoning(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doChat(ctx, req, c.reasoningDeployment, true)
}

func (c *AzureClient) doChat(ctx context.Context, req *ChatRequest, deployment string, reasoning bool) (*ChatResult, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  AzureClientName,
		ModelUsed: deployment,
	}

	messages, history, err := c.buildMessages(req, reasoning)
	if err != nil {
		result.Failure = FailureFatal
		result.ErrorMessage = err.Error()
		return result, err
	}

	body := chatCompletionRequest{Messages: messages}
	if reasoning {
		body.MaxCompletionTokens = c.reasoningMaxTokens
	} else {
		body.MaxTokens = req.MaxTokens
		body.Temperature = req.Sampling.Temperature
		body.TopP = req.Sampling.TopP
		body.FrequencyPenalty = req.Sampling.FrequencyPenalty
		body.PresencePenalty = req.Sampling.PresencePenalty
		if req.Sampling.Seed != 0 {
			body.Seed = &req.Sampling.Seed
		}
	}
	if req.ResponseFormat == FormatJSON {
		body.ResponseFormat = &responseFormat{Type: FormatJSON}
	}

	resp, failure, attempts, err := c.doRequest(ctx, deployment, &body)
	result.Attempts = attempts
	if failure != FailureNone {
		result.Failure = failure
		if err != nil {
			result.ErrorMessage = err.Error()
		}
		// Context-length overflow is a branchable condition, not an error.
		if failure == FailureContextLength {
			return result, nil
		}
		return result, err
	}

	if len(resp.Choices) == 0 {
		result.Failure = FailureFatal
		result.ErrorMessage = "no choices in response"
		return result, fmt.Errorf("no choices in response")
	}

	result.Content = resp.Choices[0].Message.Content
	result.PromptTokens = resp.Usage.PromptTokens
	result.CompletionTokens = resp.Usage.CompletionTokens
	result.TotalTokens = resp.Usage.TotalTokens
	result.History = append(history, Message{Role: "assistant", Content: result.Content})

	if req.ResponseFormat == FormatJSON && result.Content != "" {
		parsed, perr := ParseJSONContent(result.Content)
		if perr != nil {
			result.Failure = FailureFatal
			result.ErrorMessage = perr.Error()
			return result, fmt.Errorf("structured response: %w", perr)
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// buildMessages converts a ChatRequest to wire messages plus the plain-text
// conversation history recorded with the case.
func (c *AzureClient) buildMessages(req *ChatRequest, reasoning bool) ([]chatMessage, []Message, error) {
	var msgs []chatMessage
	var history []Message

	if req.System != "" && !reasoning {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
		history = append(history, Message{Role: "system", Content: req.System})
	}

	if len(req.ImagePaths) == 0 {
		msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
	} else {
		parts := []contentPart{{Type: "text", Text: req.Prompt}}
		for _, p := range req.ImagePaths {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read image %s: %w", p, err)
			}
			parts = append(parts, contentPart{
				Type: "image_url",
				ImageURL: &imageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
				},
			})
		}
		msgs = append(msgs, chatMessage{Role: "user", Content: parts})
	}
	history = append(history, Message{Role: "user", Content: req.Prompt})

	return msgs, history, nil
}

// doRequest posts the chat body with transient-failure retries. It returns
// the classified failure reason alongside the raw error.
func (c *AzureClient) doRequest(ctx context.Context, deployment string, body *chatCompletionRequest) (*chatCompletionResponse, FailureReason, int, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, deployment, c.apiVersion)

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, FailureFatal, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, FailureFatal, attempt, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, FailureFatal, attempt, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.sleep(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.sleep(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var out chatCompletionResponse
			if err := json.Unmarshal(respBody, &out); err != nil {
				return nil, FailureFatal, attempt + 1, fmt.Errorf("failed to unmarshal response: %w", err)
			}
			return &out, FailureNone, attempt + 1, nil

		case isContextLengthError(resp.StatusCode, respBody):
			return nil, FailureContextLength, attempt + 1,
				fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleep(ctx, attempt)
			continue

		default:
			return nil, FailureFatal, attempt + 1,
				fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))
		}
	}

	return nil, FailureTransient, c.maxRetries, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// isContextLengthError detects the provider's input-window overflow response.
func isContextLengthError(status int, body []byte) bool {
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, contextLengthMarker) ||
		strings.Contains(lower, "context_length_exceeded")
}

// sleep applies exponential backoff with jitter, respecting cancellation.
func (c *AzureClient) sleep(ctx context.Context, attempt int) {
	delay := c.retryDelay * time.Duration(1<<attempt)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	jitter := time.Duration(float64(delay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// Wire types

type chatCompletionRequest struct {
	Messages            []chatMessage   `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         float64         `json:"temperature,omitempty"`
	TopP                float64         `json:"top_p,omitempty"`
	FrequencyPenalty    float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty     float64         `json:"presence_penalty,omitempty"`
	Seed                *int64          `json:"seed,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ Client = (*AzureClient)(nil)
