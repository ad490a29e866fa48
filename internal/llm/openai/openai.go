package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"healthrag/internal/domain"
	"healthrag/internal/llm"
	"healthrag/internal/retry"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4-turbo"

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client implements llm.Model on top of the chat completions API.
type Client struct {
	client *openai.Client
	model  string
}

var _ llm.Model = (*Client)(nil)

// NewClient creates a chat client. An empty API key is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing language model API key", domain.ErrConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{client: openai.NewClientWithConfig(ClientConfig(cfg.APIKey, cfg.BaseURL, cfg.Timeout)), model: cfg.Model}, nil
}

// ClientConfig builds the go-openai configuration shared by the chat and
// embedding adapters.
func ClientConfig(apiKey, baseURL string, timeout time.Duration) openai.ClientConfig {
	c := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return c
}

// Complete sends the prompt as a single user message. Provider errors that
// are not worth retrying come back marked retry.Permanent.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai omits a zero temperature, which providers read as 1.
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		if !Retryable(err) {
			return "", retry.Permanent(err)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Retryable reports whether an error from the provider is worth retrying:
// rate limiting, server errors and transport failures are; other client
// errors such as bad credentials are not.
func Retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == 0 {
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
