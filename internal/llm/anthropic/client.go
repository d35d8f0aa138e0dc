package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goanthropic "github.com/liushuangls/go-anthropic/v2"

	"research-portal/internal/llm"
)

const providerName = "anthropic"

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	api   *goanthropic.Client
	model string
}

// NewClient constructs a new Anthropic client. An empty baseURL keeps the
// library default.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &llm.ConfigurationError{Provider: providerName, Reason: "ANTHROPIC_API_KEY is not set"}
	}
	if strings.TrimSpace(model) == "" {
		return nil, &llm.ConfigurationError{Provider: providerName, Reason: "LLM_MODEL is required"}
	}
	var opts []goanthropic.ClientOption
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, goanthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Client{
		api:   goanthropic.NewClient(apiKey, opts...),
		model: model,
	}, nil
}

// Complete sends the prompt as a single user message under the fixed system prompt.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	temperature := float32(req.EffectiveTemperature())
	apiReq := goanthropic.MessagesRequest{
		Model:       goanthropic.Model(c.model),
		MaxTokens:   req.EffectiveMaxTokens(),
		Temperature: &temperature,
		Messages: []goanthropic.Message{
			goanthropic.NewUserTextMessage(req.Prompt),
		},
		MultiSystem: []goanthropic.MessageSystemPart{
			goanthropic.NewSystemMessagePart(llm.SystemPrompt),
		},
	}

	resp, err := c.api.CreateMessages(ctx, apiReq)
	if err != nil {
		return llm.Response{}, toUpstreamError(err)
	}

	content := resp.GetFirstContentText()
	if strings.TrimSpace(content) == "" {
		return llm.Response{}, &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: http.StatusBadGateway,
			Message:    "response contained no text content",
		}
	}

	return llm.Response{
		Content: content,
		Model:   string(resp.Model),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// statusForErrorType maps Anthropic error types to the HTTP status the API
// documents for them.
var statusForErrorType = map[string]int{
	"invalid_request_error": http.StatusBadRequest,
	"authentication_error":  http.StatusUnauthorized,
	"permission_error":      http.StatusForbidden,
	"not_found_error":       http.StatusNotFound,
	"request_too_large":     http.StatusRequestEntityTooLarge,
	"rate_limit_error":      http.StatusTooManyRequests,
	"api_error":             http.StatusInternalServerError,
	"overloaded_error":      529,
}

func toUpstreamError(err error) error {
	var apiErr *goanthropic.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: statusForErrorType[string(apiErr.Type)],
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *goanthropic.RequestError
	if errors.As(err, &reqErr) {
		return &llm.UpstreamError{
			Provider:   providerName,
			StatusCode: reqErr.StatusCode,
			Message:    err.Error(),
			Err:        err,
		}
	}
	return &llm.UpstreamError{Provider: providerName, Message: err.Error(), Err: err}
}

var _ llm.Client = (*Client)(nil)
