// Package llm defines the provider-neutral completion client and its errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// SystemPrompt frames every completion call.
	SystemPrompt = "You are a financial analyst and research assistant. Respond with structured, accurate data extraction."

	DefaultTemperature = 0.3
	DefaultMaxTokens   = 2000
)

// Client sends one prompt to an LLM provider and returns its raw text.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single completion call. Schema is advisory and only shapes
// the prompt wording; nil Temperature and zero MaxTokens use the defaults.
type Request struct {
	Prompt      string
	Schema      map[string]any
	Temperature *float64
	MaxTokens   int
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// EffectiveTemperature resolves the temperature sent upstream.
func (r Request) EffectiveTemperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

// EffectiveMaxTokens resolves the output token ceiling.
func (r Request) EffectiveMaxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// Response is the raw completion text plus usage counters.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Usage holds token counters reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens sums prompt and completion tokens.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// ConfigurationError means the client cannot be used at all, typically a
// missing credential. It is never retried.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return "LLM not configured: " + e.Reason
	}
	return fmt.Sprintf("%s not configured: %s", e.Provider, e.Reason)
}

// UpstreamError reports a failed completion call: transport failure,
// non-2xx status, an empty response or a timeout.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("LLM API error: %d - %s", e.StatusCode, msg)
	}
	return "LLM API error: " + msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Unconfigured stands in for a provider that could not be built.
type Unconfigured struct {
	Err error
}

// Complete always fails with the construction error.
func (u Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, u.err()
}

func (u Unconfigured) err() error {
	if u.Err == nil {
		return &ConfigurationError{Reason: "no provider configured"}
	}
	return u.Err
}

// CheckConfigured reports the ConfigurationError behind c, looking through
// decorators, or nil when c can issue calls.
func CheckConfigured(c Client) error {
	for {
		switch v := c.(type) {
		case nil:
			return &ConfigurationError{Reason: "no provider configured"}
		case Unconfigured:
			return v.err()
		case *Unconfigured:
			return v.err()
		case interface{ Unwrap() Client }:
			c = v.Unwrap()
		default:
			return nil
		}
	}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// SanitizeError flattens err to one bounded line for warnings and logs.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = strings.ToValidUTF8(msg[:maxLen], "")
	}
	return msg
}
