// Package docintel implements a client for the document analysis service, an
// Azure Document Intelligence-compatible API. Analysis is asynchronous: the
// service accepts a document, returns an operation URL, and the client polls
// until the operation completes.
package docintel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelLayout is the general layout model that produces markdown output.
const ModelLayout = "prebuilt-layout"

// Config holds connection settings for the document analysis service.
type Config struct {
	Endpoint     string // e.g. https://myresource.cognitiveservices.azure.com
	APIKey       string
	APIVersion   string
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Client analyzes documents over HTTP.
type Client struct {
	endpoint     string
	apiKey       string
	apiVersion   string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Result is the output of a completed analysis.
type Result struct {
	Content string // extracted document text, markdown formatted
}

// NewClient creates a document analysis client.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-07-31-preview"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 5 * time.Minute
	}

	return &Client{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		apiVersion:   cfg.APIVersion,
		client:       &http.Client{Timeout: cfg.Timeout},
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

// Analyze submits document bytes to the named model and waits for the
// markdown content.
func (c *Client) Analyze(ctx context.Context, document []byte, modelID string) (*Result, error) {
	opURL, err := c.submit(ctx, document, modelID)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, opURL)
}

func (c *Client) submit(ctx context.Context, document []byte, modelID string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s&outputContentFormat=markdown",
		c.endpoint, modelID, c.apiVersion)

	body, err := json.Marshal(analyzeRequest{
		Base64Source: base64.StdEncoding.EncodeToString(document),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("analyze error (status %d): %s", resp.StatusCode, string(respBody))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location header")
	}
	return opURL, nil
}

func (c *Client) poll(ctx context.Context, opURL string) (*Result, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("analysis did not complete within %s", c.pollTimeout)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", opURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll request failed: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read poll response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("poll error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var op operationStatus
		if err := json.Unmarshal(respBody, &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal poll response: %w", err)
		}

		switch op.Status {
		case "succeeded":
			return &Result{Content: op.AnalyzeResult.Content}, nil
		case "failed":
			return nil, fmt.Errorf("analysis failed: %s", op.Error.Message)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// Wire types

type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

type operationStatus struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
	} `json:"analyzeResult"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
