// Package wrapper is the HTTP client for the AI wrapper service. Every
// model call in this project, chat completion or embedding, goes through
// this package; nothing else may contact an AI provider.
package wrapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Error is the single failure type raised by the client. StatusCode is 0
// for transport-level failures (timeout, connection error); otherwise it
// carries the HTTP status that triggered the error. Upstream holds the raw
// error body or exception text from the wrapper.
type Error struct {
	Message    string
	StatusCode int
	Upstream   string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

type Config struct {
	BaseURL    string
	Key        string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	retrier    *retrier
}

// New validates its configuration eagerly: a missing base URL or key is a
// deployment mistake and must fail at startup, not on first use.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("wrapper base_url is not set")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("wrapper key is not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        cfg.Key,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retrier:    newRetrier(cfg.MaxRetries, cfg.BaseDelay),
	}, nil
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type ChatChoice struct {
	Message ChatMessage `json:"message"`
}

type ChatResponse struct {
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type EmbeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type EmbeddingResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingItem `json:"data"`
}

// ChatCompletions calls POST /v1/chat/completions.
func (c *Client) ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	logutil.GetLogger(ctx).Debug("wrapper chat completions",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)
	out := &ChatResponse{}
	if err := c.post(ctx, "/v1/chat/completions", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Embeddings calls POST /v1/embeddings with a batch of input texts.
func (c *Client) Embeddings(ctx context.Context, model string, input []string) (*EmbeddingResponse, error) {
	logutil.GetLogger(ctx).Debug("wrapper embeddings",
		zap.String("model", model),
		zap.Int("inputs", len(input)),
	)
	out := &EmbeddingResponse{}
	if err := c.post(ctx, "/v1/embeddings", &embeddingRequest{Model: model, Input: input}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Message: fmt.Sprintf("encode request for %s: %v", path, err)}
	}
	url := c.baseURL + path
	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	}

	resp, err := c.retrier.Do(ctx, op)
	if err != nil {
		return &Error{
			Message:  fmt.Sprintf("network error calling %s: %v", path, err),
			Upstream: err.Error(),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Message:    fmt.Sprintf("read response from %s: %v", path, err),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{
			Message:    fmt.Sprintf("wrapper returned %d for %s", resp.StatusCode, path),
			StatusCode: resp.StatusCode,
			Upstream:   upstreamBody(raw),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Message:    fmt.Sprintf("invalid JSON from wrapper at %s: %v", path, err),
			StatusCode: resp.StatusCode,
			Upstream:   string(raw),
		}
	}
	return nil
}

// upstreamBody keeps structured error bodies compact and falls back to the
// raw text when the body is not JSON.
func upstreamBody(raw []byte) string {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return string(raw)
}
