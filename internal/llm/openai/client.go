package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"research-portal/internal/llm"
)

const providerName = "openai"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	api   *goopenai.Client
	model string
}

// Option customizes the underlying go-openai configuration.
type Option func(*goopenai.ClientConfig)

// WithBaseURL points the client at a compatible endpoint, e.g. a proxy or a test server.
func WithBaseURL(baseURL string) Option {
	return func(cfg *goopenai.ClientConfig) {
		if strings.TrimSpace(baseURL) != "" {
			cfg.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *goopenai.ClientConfig) {
		if hc != nil {
			cfg.HTTPClient = hc
		}
	}
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &llm.ConfigurationError{Provider: providerName, Reason: "OPENAI_API_KEY is not set"}
	}
	if strings.TrimSpace(model) == "" {
		return nil, &llm.ConfigurationError{Provider: providerName, Reason: "LLM_MODEL is required"}
	}
	cfg := goopenai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		api:   goopenai.NewClientWithConfig(cfg),
		model: model,
	}, nil
}

// Complete sends the fixed system message and the prompt as one user message.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	apiReq := goopenai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   req.EffectiveMaxTokens(),
		Temperature: float32(req.EffectiveTemperature()),
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return llm.Response{}, toUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: http.StatusBadGateway,
			Message:    "response contained no choices",
		}
	}

	return llm.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func toUpstreamError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return &llm.UpstreamError{Provider: providerName, Message: err.Error(), Err: err}
}

var _ llm.Client = (*Client)(nil)
