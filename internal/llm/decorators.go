package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"research-portal/internal/shared/metrics"
	"research-portal/internal/shared/telemetry"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

type timeoutClient struct {
	base    Client
	timeout time.Duration
}

// WithTimeout bounds every call to base by d. Expiry surfaces as an
// UpstreamError with status 504. There is no retry.
func WithTimeout(base Client, d time.Duration) Client {
	if base == nil {
		return nil
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return timeoutClient{base: base, timeout: d}
}

func (t timeoutClient) Complete(ctx context.Context, req Request) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.base.Complete(callCtx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		up := &UpstreamError{
			StatusCode: http.StatusGatewayTimeout,
			Message:    fmt.Sprintf("completion timed out after %s", t.timeout),
			Err:        err,
		}
		var inner *UpstreamError
		if errors.As(err, &inner) {
			up.Provider = inner.Provider
		}
		return Response{}, up
	}
	return Response{}, err
}

func (t timeoutClient) Unwrap() Client { return t.base }

type instrumentedClient struct {
	base     Client
	provider string
	model    string
	now      func() time.Time
}

// Instrument logs and counts every completion call made through base.
func Instrument(base Client, provider, model string) Client {
	if base == nil {
		return nil
	}
	return instrumentedClient{base: base, provider: provider, model: model, now: time.Now}
}

func (c instrumentedClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := c.now()
	resp, err := c.base.Complete(ctx, req)
	durationMs := float64(c.now().Sub(start).Microseconds()) / 1000.0

	metrics.ObserveCompletion(durationMs, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, err != nil)

	fields := map[string]any{
		"provider":      c.provider,
		"model":         c.model,
		"duration_ms":   durationMs,
		"prompt_chars":  len(req.Prompt),
		"temperature":   req.EffectiveTemperature(),
		"max_tokens":    req.EffectiveMaxTokens(),
		"schema_hinted": req.Schema != nil,
	}
	if err != nil {
		fields["error"] = SanitizeError(err)
		var up *UpstreamError
		if errors.As(err, &up) {
			fields["status_code"] = up.StatusCode
		}
		telemetry.Error("llm.completion.failed", fields)
		return resp, err
	}

	if resp.Model != "" {
		fields["model"] = resp.Model
	}
	fields["prompt_tokens"] = resp.Usage.PromptTokens
	fields["completion_tokens"] = resp.Usage.CompletionTokens
	fields["total_tokens"] = resp.Usage.TotalTokens()
	fields["response_chars"] = len(resp.Content)
	telemetry.Info("llm.completion", fields)
	return resp, nil
}

func (c instrumentedClient) Unwrap() Client { return c.base }
