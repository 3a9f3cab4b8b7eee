// Package httpclient wraps net/http for the side-effect nodes that make
// outbound calls from a board, adapted from
// cmd/workflow-runner's HTTP worker (cmd/workflow-runner/worker/http_worker.go):
// same timeout default and JSON-first response handling, generalized
// from a Redis-stream task payload to a plain Request/Response pair a
// NodeLogic can call directly.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the shape a board-authored HTTP request node fills in.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is what the client hands back to the calling node. JSON
// bodies are decoded into JSON so CEL/board code can index into them
// directly; non-JSON bodies are kept as raw bytes.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	JSON       interface{} // nil if Body did not parse as JSON
	Duration   time.Duration
}

// Client is the external/httpclient.Client capability, satisfying
// flow/context.HTTPClient.
type Client struct {
	http  *http.Client
	guard urlGuard
}

// New builds a Client with cmd/workflow-runner's 30s default timeout.
func New() *Client {
	return &Client{http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) Name() string { return "httpclient" }

// Do issues req and returns the decoded Response, matching
// executeHTTPRequest: default method GET, Content-Type/User-Agent set
// unless the caller already supplied them, JSON response best-effort.
// Every request passes through the SSRF/path guard first, since a
// board-authored URL is untrusted input the same way a worker's queued
// task payload was.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("httpclient: missing url")
	}
	if err := c.guard.validate(req.URL); err != nil {
		return nil, fmt.Errorf("httpclient: blocked url: %w", err)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "flowengine/1.0")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("httpclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read response: %w", err)
	}

	var parsed interface{}
	_ = json.Unmarshal(body, &parsed) // parsed stays nil on non-JSON bodies

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		JSON:       parsed,
		Duration:   duration,
	}, nil
}
