package wrapper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:    baseURL,
		Key:        "test-key",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURLAndKey(t *testing.T) {
	_, err := New(Config{Key: "k"})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "http://wrapper.local"})
	require.Error(t, err)
}

func TestEmbeddingsSendsBearerAndBody(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{
			Model: "embed-model",
			Data: []EmbeddingItem{
				{Index: 0, Embedding: []float32{0.1, 0.2}},
				{Index: 1, Embedding: []float32{0.3, 0.4}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Embeddings(context.Background(), "embed-model", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, embeddingRequest{Model: "embed-model", Input: []string{"a", "b"}}, gotBody)
	require.Len(t, resp.Data, 2)
}

func TestChatCompletionsParsesChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Model:   "chat-model",
			Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: "OK"}}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.ChatCompletions(context.Background(), &ChatRequest{
		Model:       "chat-model",
		Messages:    []ChatMessage{{Role: "user", Content: "Reply with exactly: OK"}},
		Temperature: 0.7,
		MaxTokens:   8,
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "OK", resp.Choices[0].Message.Content)
}

func TestUpstreamErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Embeddings(context.Background(), "m", []string{"x"})
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, http.StatusUnauthorized, werr.StatusCode)
	require.Contains(t, werr.Upstream, "bad key")
}

func TestRetryableStatusExhaustedBecomesUpstreamError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Embeddings(context.Background(), "m", []string{"x"})
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, http.StatusServiceUnavailable, werr.StatusCode)
	require.Equal(t, 3, calls)
}

func TestMalformedResponseBecomesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Embeddings(context.Background(), "m", []string{"x"})
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, http.StatusOK, werr.StatusCode)
	require.Equal(t, "not json", werr.Upstream)
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.ChatCompletions(context.Background(), &ChatRequest{Model: "m"})
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, 0, werr.StatusCode)
}
