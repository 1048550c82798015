// Package search implements a client for the policy index, an Azure AI
// Search-compatible service. Queries run as hybrid keyword plus vectorizable
// text with semantic ranking; the index vectorizes query text server side.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds connection settings for the policy index.
type Config struct {
	Endpoint              string // e.g. https://myservice.search.windows.net
	APIKey                string
	IndexName             string
	SemanticConfiguration string
	APIVersion            string
	Top                   int // ranked results to return
	KNearestNeighbors     int // vector neighbors per query
	Timeout               time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
}

// Client queries the policy index over HTTP.
type Client struct {
	endpoint          string
	apiKey            string
	indexName         string
	semanticConfig    string
	apiVersion        string
	top               int
	kNearestNeighbors int
	client            *http.Client
	maxRetries        int
	retryDelay        time.Duration
}

// Document is one ranked hit from the policy index.
type Document struct {
	ParentPath string  // blob path of the source policy document
	Chunk      string  // matched content chunk
	Score      float64 // reranker score when semantic ranking applies
}

// NewClient creates a policy index client.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-07-01"
	}
	if cfg.SemanticConfiguration == "" {
		cfg.SemanticConfiguration = "my-semantic-config"
	}
	if cfg.Top == 0 {
		cfg.Top = 5
	}
	if cfg.KNearestNeighbors == 0 {
		cfg.KNearestNeighbors = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &Client{
		endpoint:          strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:            cfg.APIKey,
		indexName:         cfg.IndexName,
		semanticConfig:    cfg.SemanticConfiguration,
		apiVersion:        cfg.APIVersion,
		top:               cfg.Top,
		kNearestNeighbors: cfg.KNearestNeighbors,
		client:            &http.Client{Timeout: cfg.Timeout},
		maxRetries:        cfg.MaxRetries,
		retryDelay:        cfg.RetryDelay,
	}
}

// Search runs a hybrid query against the policy index and returns ranked
// documents, best first.
func (c *Client) Search(ctx context.Context, query string) ([]Document, error) {
	body := searchRequest{
		Search: query,
		VectorQueries: []vectorQuery{{
			Kind:   "text",
			Text:   query,
			Fields: "vector",
			K:      c.kNearestNeighbors,
			Weight: 0.5,
		}},
		QueryType:             "semantic",
		SemanticConfiguration: c.semanticConfig,
		Captions:              "extractive",
		Answers:               "extractive",
		Top:                   c.top,
	}

	resp, err := c.doRequest(ctx, &body)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.Value))
	for _, hit := range resp.Value {
		docs = append(docs, Document{
			ParentPath: hit.ParentPath,
			Chunk:      hit.Chunk,
			Score:      hit.RerankerScore,
		})
	}
	return docs, nil
}

func (c *Client) doRequest(ctx context.Context, body *searchRequest) (*searchResponse, error) {
	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		c.endpoint, c.indexName, c.apiVersion)

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
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
			var out searchResponse
			if err := json.Unmarshal(respBody, &out); err != nil {
				return nil, fmt.Errorf("failed to unmarshal response: %w", err)
			}
			return &out, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("search error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleep(ctx, attempt)
			continue

		default:
			return nil, fmt.Errorf("search error (status %d): %s", resp.StatusCode, string(respBody))
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// sleep applies exponential backoff with jitter, respecting cancellation.
func (c *Client) sleep(ctx context.Context, attempt int) {
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

type searchRequest struct {
	Search                string        `json:"search"`
	VectorQueries         []vectorQuery `json:"vectorQueries"`
	QueryType             string        `json:"queryType"`
	SemanticConfiguration string        `json:"semanticConfiguration"`
	Captions              string        `json:"captions,omitempty"`
	Answers               string        `json:"answers,omitempty"`
	Top                   int           `json:"top"`
}

type vectorQuery struct {
	Kind   string  `json:"kind"`
	Text   string  `json:"text"`
	Fields string  `json:"fields"`
	K      int     `json:"k"`
	Weight float64 `json:"weight,omitempty"`
}

type searchResponse struct {
	Value []struct {
		ParentPath    string  `json:"parent_path"`
		Chunk         string  `json:"chunk"`
		RerankerScore float64 `json:"@search.rerankerScore"`
	} `json:"value"`
}
