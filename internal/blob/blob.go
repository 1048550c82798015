// Package blob implements a client for the case document store, an Azure
// Blob Storage-compatible service. Requests authenticate with a SAS token
// appended to each blob URL.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds connection settings for the blob store.
type Config struct {
	Endpoint   string // e.g. https://myaccount.blob.core.windows.net
	Container  string
	SASToken   string // query-string credential, without leading "?"
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client reads and writes blobs over HTTP.
type Client struct {
	endpoint   string
	container  string
	sasToken   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a blob store client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &Client{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		container:  cfg.Container,
		sasToken:   strings.TrimPrefix(cfg.SASToken, "?"),
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Upload writes data to the named blob, overwriting any existing content.
func (c *Client) Upload(ctx context.Context, blobPath string, data []byte) error {
	_, err := c.doRequest(ctx, "PUT", c.blobURL(blobPath), data, map[string]string{
		"x-ms-blob-type": "BlockBlob",
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", blobPath, err)
	}
	return nil
}

// DownloadToBytes fetches the blob content. blobPath may be a path within
// the configured container or a full blob URL, as returned by the policy
// index.
func (c *Client) DownloadToBytes(ctx context.Context, blobPath string) ([]byte, error) {
	target := blobPath
	if !strings.HasPrefix(blobPath, "http://") && !strings.HasPrefix(blobPath, "https://") {
		target = c.blobURL(blobPath)
	} else {
		target = c.withSAS(target)
	}

	data, err := c.doRequest(ctx, "GET", target, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", blobPath, err)
	}
	return data, nil
}

func (c *Client) blobURL(blobPath string) string {
	path := strings.TrimPrefix(blobPath, "/")
	return c.withSAS(fmt.Sprintf("%s/%s/%s", c.endpoint, c.container, escapePath(path)))
}

func (c *Client) withSAS(target string) string {
	if c.sasToken == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + c.sasToken
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) doRequest(ctx context.Context, method, target string, body []byte, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

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
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("blob error (status %d): %s", resp.StatusCode, string(respBody))
			c.sleep(ctx, attempt)
			continue

		default:
			return nil, fmt.Errorf("blob error (status %d): %s", resp.StatusCode, string(respBody))
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
