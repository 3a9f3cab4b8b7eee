// Package model defines the model-provider external collaborator: the
// interface a board's agent/LLM-invoking nodes call through,
// plus an HTTP-based reference implementation built on external/httpclient
// the same way cmd/workflow-runner's HTTP worker builds requests
// (cmd/workflow-runner/worker/http_worker.go).
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/flowengine/external/httpclient"
)

// Message is one turn of conversation history passed to Invoke.
type Message struct {
	Role    string
	Content string
}

// ResponseChunk is one piece of a streaming response; Callback receives
// one per chunk, with Done true on the final (possibly empty) chunk.
type ResponseChunk struct {
	Delta string
	Done  bool
}

// Response is the full, non-streaming result of Invoke once the stream
// completes.
type Response struct {
	Content    string
	TokensIn   int
	TokensOut  int
	StopReason string
}

// Callback receives each streamed chunk as it arrives; nil disables
// streaming and the implementation buffers the whole response.
type Callback func(ResponseChunk)

// Provider is the model-provider capability.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, history []Message, cb Callback) (Response, error)
}

// HTTPProvider calls a model-serving HTTP endpoint (e.g. a gateway
// deployment) and treats the body as already-decoded JSON. Requests go
// through the httpclient URL guard, so loopback and private-network
// endpoints are rejected. It
// does not attempt real token-level streaming over HTTP chunked
// encoding — when a Callback is supplied it delivers the whole response
// as a single non-final chunk followed by a Done chunk, which is enough
// to exercise the streaming contract in boards/tests without requiring
// a live SSE-capable backend.
type HTTPProvider struct {
	client   *httpclient.Client
	endpoint string
}

func NewHTTPProvider(client *httpclient.Client, endpoint string) *HTTPProvider {
	return &HTTPProvider{client: client, endpoint: endpoint}
}

func (p *HTTPProvider) Name() string { return "model.http" }

func (p *HTTPProvider) Invoke(ctx context.Context, history []Message, cb Callback) (Response, error) {
	if len(history) == 0 {
		return Response{}, fmt.Errorf("model: empty history")
	}

	body := encodeHistory(history)
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: "POST",
		URL:    p.endpoint,
		Body:   body,
	})
	if err != nil {
		return Response{}, fmt.Errorf("model: invoke: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("model: provider returned status %d", resp.StatusCode)
	}

	content := extractContent(resp.JSON, string(resp.Body))
	if cb != nil {
		cb(ResponseChunk{Delta: content})
		cb(ResponseChunk{Done: true})
	}
	return Response{Content: content, StopReason: "stop"}, nil
}

func encodeHistory(history []Message) []byte {
	type wireMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	msgs := make([]wireMessage, len(history))
	for i, m := range history {
		msgs[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	out, _ := json.Marshal(struct {
		Messages []wireMessage `json:"messages"`
	}{Messages: msgs})
	return out
}

func extractContent(parsed interface{}, fallback string) string {
	m, ok := parsed.(map[string]interface{})
	if !ok {
		return fallback
	}
	if content, ok := m["content"].(string); ok {
		return content
	}
	return fallback
}
