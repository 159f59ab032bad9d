package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-70b-8192"
)

// Config configures the chat completions client.
type Config struct {
	// APIKey is sent as a bearer token.
	APIKey string

	// BaseURL of an OpenAI-compatible API.
	// Default: https://api.groq.com/openai/v1
	BaseURL string

	// Model used when a request does not name one.
	// Default: llama3-70b-8192
	Model string

	// Timeout is the HTTP request timeout.
	// Default: 30 seconds
	Timeout time.Duration
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("APIKey is required")
	}
	return nil
}

func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_completion_tokens,omitempty"`
}

// Completer returns the text of one chat completion.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ChatClient talks to Groq or any other OpenAI-compatible endpoint.
type ChatClient struct {
	config      Config
	completions chatCompletions
	logger      *slog.Logger
}

func NewChatClient(config Config, logger *slog.Logger) (*ChatClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL+"/"),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		option.WithMaxRetries(0),
	)
	return &ChatClient{
		config:      config,
		completions: &client.Chat.Completions,
		logger:      logger,
	}, nil
}

// Complete sends one request and returns the trimmed content of the first
// choice.
func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}

	start := time.Now()
	completion, err := c.completions.New(ctx, buildParams(req))
	duration := time.Since(start)
	if err != nil {
		c.logger.Error("chat completion request failed", "model", req.Model, "error", err, "duration", duration)
		return "", classifyError(err)
	}
	c.logger.Debug("chat completion request completed", "model", req.Model, "duration", duration)

	if len(completion.Choices) == 0 {
		return "", NewAPIError(0, "no choices in response")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// classifyError maps SDK and transport failures onto LLMError types.
func classifyError(err error) *LLMError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &LLMError{Type: ErrorTypeAPI, Code: apiErr.StatusCode, Message: msg, Err: err}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.Canceled) {
		return NewNetworkError(err)
	}
	return NewParseError(err)
}
