// Package transport provides the outbound HTTP client the api step kind
// issues requests through.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client is the resource the api handler acquires from the resource
// provider. Do executes a single HTTP request and returns its parsed JSON
// body, raising on any non-2xx status.
type Client interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body any) (map[string]any, error)
}

// HTTPClient is the default Client, wrapping net/http.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns an HTTPClient with no client-side timeout; per-call
// deadlines are expected to arrive via ctx, since per-handler timeouts live
// in the transport layer rather than in this engine's own scope.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{client: &http.Client{}}
}

// Do issues the request and parses the response body as JSON. A body that
// is not valid JSON, or a non-2xx status, is reported as an error; both
// surface to the caller as a HandlerError once wrapped by the executor.
func (c *HTTPClient) Do(ctx context.Context, method, url string, headers map[string]string, body any) (map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("non-2xx response (%d): %s", resp.StatusCode, string(respBody))
	}

	if len(respBody) == 0 {
		return map[string]any{}, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}
	return parsed, nil
}
