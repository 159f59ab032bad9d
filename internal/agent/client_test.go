package agent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *ChatClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewChatClient(Config{APIKey: "test-key", BaseURL: server.URL + "/"}, discardLogger())
	require.NoError(t, err)
	return client
}

func TestNewChatClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client, err := NewChatClient(Config{APIKey: "k"}, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultModel, client.config.Model)
		assert.Equal(t, 30*time.Second, client.config.Timeout)
	})

	t.Run("missing API key", func(t *testing.T) {
		_, err := NewChatClient(Config{}, nil)
		assert.Error(t, err)
	})
}

func TestChatClient_Complete(t *testing.T) {
	var got ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"  It started two days ago.  "}}]}`)
	})

	out, err := client.Complete(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "user", Content: "When did it start?"}},
		Temperature: 0.6,
		MaxTokens:   200,
	})
	require.NoError(t, err)
	assert.Equal(t, "It started two days ago.", out)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.InDelta(t, 0.6, got.Temperature, 1e-9)
}

func TestChatClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errType string
		code    int
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(w, `{"error":{"message":"rate limited","type":"requests"}}`)
			},
			errType: ErrorTypeAPI,
			code:    http.StatusTooManyRequests,
		},
		{
			name: "error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"error":{"message":"model not found"}}`)
			},
			errType: ErrorTypeAPI,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"choices":[]}`)
			},
			errType: ErrorTypeAPI,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `not json`)
			},
			errType: ErrorTypeParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Complete(context.Background(), ChatRequest{})
			require.Error(t, err)

			var llmErr *LLMError
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.errType, llmErr.Type)
			assert.Equal(t, tt.code, llmErr.Code)
		})
	}
}

func TestChatClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewChatClient(Config{APIKey: "k", BaseURL: url}, discardLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), ChatRequest{})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorTypeNetwork, llmErr.Type)
}

func TestChatClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client, err := NewChatClient(Config{APIKey: "k", BaseURL: server.URL, Timeout: 20 * time.Millisecond}, discardLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), ChatRequest{})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorTypeTimeout, llmErr.Type)
}

func TestChatClient_RateLimitIsNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"slow down"}}`)
	})

	_, err := client.Complete(context.Background(), ChatRequest{})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusTooManyRequests, llmErr.Code)
	assert.Equal(t, 1, calls)
}

func TestBuildParams(t *testing.T) {
	params := buildParams(ChatRequest{
		Model: "llama3-8b-8192",
		Messages: []Message{
			{Role: "system", Content: "You are a patient."},
			{Role: "assistant", Content: "Hello doctor."},
			{Role: "user", Content: "Any pain?"},
		},
		Temperature: 0.4,
	})

	assert.Equal(t, "llama3-8b-8192", string(params.Model))
	require.Len(t, params.Messages, 3)
	assert.NotNil(t, params.Messages[0].OfSystem)
	assert.NotNil(t, params.Messages[1].OfAssistant)
	assert.NotNil(t, params.Messages[2].OfUser)
	assert.False(t, params.MaxCompletionTokens.Valid(), "zero max tokens is omitted")
}
