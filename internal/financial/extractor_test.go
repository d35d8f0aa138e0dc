package financial

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"research-portal/internal/llm"
	"research-portal/internal/shared/telemetry"
)

type stubClient struct {
	content string
	err     error
	calls   int
	last    llm.Request
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Content: s.content}, nil
}

func quiet(t *testing.T) {
	t.Helper()
	telemetry.SetOutput(io.Discard)
	t.Cleanup(func() { telemetry.SetOutput(nil) })
}

func TestExtractEmptyArrayWarnsNoItems(t *testing.T) {
	quiet(t)
	client := &stubClient{content: "[]"}
	res := (&Extractor{LLM: client}).Extract(context.Background(), "Annual report 2023")

	if len(res.LineItems) != 0 {
		t.Fatalf("expected no items, got %d", len(res.LineItems))
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != msgNoItems {
		t.Fatalf("expected only the no-items warning, got %#v", res.Warnings)
	}
	if res.ExtractionNotes != msgNotesIssues {
		t.Fatalf("unexpected notes: %q", res.ExtractionNotes)
	}
	if client.calls != 1 {
		t.Fatalf("expected one completion call, got %d", client.calls)
	}
}

func TestExtractCountsLowConfidenceOnce(t *testing.T) {
	quiet(t)
	client := &stubClient{content: `Here you go:
[
  {"category":"Income Statement","lineItem":"Revenue","value":150,"currency":"USD","unit":"millions","period":"2023","confidence":"high"},
  {"category":"Income Statement","lineItem":"Other income","value":3.5,"currency":"USD","unit":"millions","confidence":"low"}
]`}
	text := "Revenue was $150 million in 2022 and grew in 2023. Compared with 2022 results."
	res := (&Extractor{LLM: client}).Extract(context.Background(), text)

	if len(res.LineItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.LineItems))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %#v", res.Warnings)
	}
	if res.Warnings[0] != "1 items extracted with low confidence - please verify manually" {
		t.Fatalf("unexpected warning: %q", res.Warnings[0])
	}
	if got := strings.Join(res.YearsFound, ","); got != "2022,2023" {
		t.Fatalf("expected years in first-appearance order, got %q", got)
	}
	if res.DocumentSummary != "Extracted financial data from document. Found 2 line items across years: 2022, 2023" {
		t.Fatalf("unexpected summary: %q", res.DocumentSummary)
	}
	if res.ExtractionNotes != msgNotesSuccess {
		t.Fatalf("unexpected notes: %q", res.ExtractionNotes)
	}
	if res.LineItems[0].Value == nil || *res.LineItems[0].Value != 150 {
		t.Fatalf("unexpected revenue value: %v", res.LineItems[0].Value)
	}
}

func TestExtractRequestShape(t *testing.T) {
	quiet(t)
	client := &stubClient{content: "[]"}
	(&Extractor{LLM: client}).Extract(context.Background(), "Net income 2024")

	if client.last.EffectiveTemperature() != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", client.last.EffectiveTemperature())
	}
	if client.last.Schema == nil {
		t.Fatalf("expected advisory schema on request")
	}
	if !strings.Contains(client.last.Prompt, "TEXT TO ANALYZE:\nNet income 2024") {
		t.Fatalf("prompt should embed the document text")
	}
	if !strings.Contains(client.last.Prompt, "Include ALL income statement items") {
		t.Fatalf("prompt should carry the line item instructions")
	}
}

func TestExtractCompletionFailure(t *testing.T) {
	quiet(t)
	client := &stubClient{err: &llm.UpstreamError{StatusCode: 429, Message: "Rate limit exceeded"}}
	res := (&Extractor{LLM: client}).Extract(context.Background(), "Revenue 2023")

	if res.DocumentSummary != msgFailedSummary || res.ExtractionNotes != msgFailedNotes {
		t.Fatalf("unexpected failure result: %#v", res)
	}
	if len(res.YearsFound) != 0 || len(res.LineItems) != 0 {
		t.Fatalf("failure result should be empty, got %#v", res)
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "LLM extraction failed: LLM API error: 429 - Rate limit exceeded" {
		t.Fatalf("unexpected warnings: %#v", res.Warnings)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"yearsFound":[]`) || !strings.Contains(string(raw), `"lineItems":[]`) {
		t.Fatalf("empty lists should serialize as arrays: %s", raw)
	}
}

func TestExtractMissingValues(t *testing.T) {
	quiet(t)
	client := &stubClient{content: `[
  {"category":"Income Statement","lineItem":"EBITDA","value":null,"currency":"USD","unit":"millions","confidence":"low"},
  {"category":"Income Statement","lineItem":"Revenue","value":10,"currency":"USD","unit":"millions","confidence":"medium"}
]`}
	res := (&Extractor{LLM: client}).Extract(context.Background(), "no years here")

	want := []string{
		"1 items extracted with low confidence - please verify manually",
		`1 items have missing values - marked as "Not found" in the spreadsheet`,
	}
	if strings.Join(res.Warnings, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected warnings: %#v", res.Warnings)
	}
	if !strings.HasSuffix(res.DocumentSummary, "across years: Not specified") {
		t.Fatalf("unexpected summary: %q", res.DocumentSummary)
	}
	if res.LineItems[0].Value != nil {
		t.Fatalf("null value should stay nil")
	}
}

func TestExtractEnvelopes(t *testing.T) {
	quiet(t)
	cases := map[string]string{
		"lineItems key":  `{"lineItems":[{"lineItem":"Revenue","value":1,"confidence":"high"}]}`,
		"items key":      `{"items":[{"lineItem":"Revenue","value":1,"confidence":"high"}]}`,
		"content string": `{"content":"[{\"lineItem\":\"Revenue\",\"value\":1,\"confidence\":\"high\"}]"}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			res := (&Extractor{LLM: &stubClient{content: content}}).Extract(context.Background(), "text")
			if len(res.LineItems) != 1 || res.LineItems[0].LineItem != "Revenue" {
				t.Fatalf("expected one Revenue item, got %#v", res.LineItems)
			}
			if len(res.Warnings) != 0 {
				t.Fatalf("expected no warnings, got %#v", res.Warnings)
			}
		})
	}
}

func TestExtractUnparseableOutput(t *testing.T) {
	quiet(t)
	res := (&Extractor{LLM: &stubClient{content: "I could not find a statement."}}).Extract(context.Background(), "text")
	want := []string{msgUnparseable, msgNoItems}
	if strings.Join(res.Warnings, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected warnings: %#v", res.Warnings)
	}

	res = (&Extractor{LLM: &stubClient{content: `{"summary":"nothing"}`}}).Extract(context.Background(), "text")
	if strings.Join(res.Warnings, "|") != strings.Join(want, "|") {
		t.Fatalf("object without items should warn, got %#v", res.Warnings)
	}
}

func TestExtractNormalizesOffSchemaItems(t *testing.T) {
	quiet(t)
	client := &stubClient{content: `[
  {"lineItem":"Revenue","value":"$1,234.5","currency":"USD","unit":"thousands","period":2023,"confidence":"HIGH"},
  "stray string",
  {"lineItem":"Opex","value":"n/a","confidence":"unsure"}
]`}
	res := (&Extractor{LLM: client}).Extract(context.Background(), "text")

	if len(res.LineItems) != 2 {
		t.Fatalf("expected 2 items, got %#v", res.LineItems)
	}
	rev := res.LineItems[0]
	if rev.Value == nil || *rev.Value != 1234.5 {
		t.Fatalf("expected numeric string to be parsed, got %v", rev.Value)
	}
	if rev.Period != "2023" || rev.Confidence != ConfidenceHigh {
		t.Fatalf("unexpected normalization: %#v", rev)
	}
	opex := res.LineItems[1]
	if opex.Value != nil || opex.Confidence != ConfidenceLow {
		t.Fatalf("unexpected normalization: %#v", opex)
	}
	if res.Warnings[0] != "3 items did not match the line-item schema and were normalized" {
		t.Fatalf("unexpected first warning: %#v", res.Warnings)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   any
		want *float64
	}{
		{in: 150.0, want: ptr(150)},
		{in: "1,234", want: ptr(1234)},
		{in: "$ 2.5", want: ptr(2.5)},
		{in: "(12)", want: ptr(-12)},
		{in: "Not found", want: nil},
		{in: "", want: nil},
		{in: "NaN", want: nil},
		{in: "Inf", want: nil},
		{in: nil, want: nil},
		{in: true, want: nil},
	}
	for _, tc := range cases {
		got := ParseValue(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("%#v: expected nil, got %v", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("%#v: expected %v, got %v", tc.in, *tc.want, got)
		}
	}
}

func TestFindYears(t *testing.T) {
	got := FindYears("FY2023 vs 2022; outlook 2024, restated 2023 figures; page 1999")
	if strings.Join(got, ",") != "2023,2022,2024" {
		t.Fatalf("unexpected years: %#v", got)
	}
	if got := FindYears("no years"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestExtractWithoutClient(t *testing.T) {
	res := (&Extractor{}).Extract(context.Background(), "text")
	if res.DocumentSummary != msgFailedSummary {
		t.Fatalf("expected failure result, got %#v", res)
	}
	if !strings.HasPrefix(res.Warnings[0], "LLM extraction failed: ") {
		t.Fatalf("unexpected warning: %q", res.Warnings[0])
	}
	var cfgErr *llm.ConfigurationError
	if !errors.As(llm.CheckConfigured(nil), &cfgErr) {
		t.Fatalf("expected configuration error for nil client")
	}
}

func ptr(v float64) *float64 { return &v }

func TestExtractRepairedOutputWarns(t *testing.T) {
	quiet(t)
	cases := map[string]string{
		"bare array":     `[{"lineItem":"Revenue","value":150,"confidence":"high"},]`,
		"envelope":       `{"lineItems":[{"lineItem":"Revenue","value":150,"confidence":"high"}],}`,
		"content string": `{"content":"[{\"lineItem\":\"Revenue\",\"value\":150,\"confidence\":\"high\"},]"}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			res := (&Extractor{LLM: &stubClient{content: content}}).Extract(context.Background(), "Revenue 2023")
			if len(res.LineItems) != 1 || res.LineItems[0].LineItem != "Revenue" {
				t.Fatalf("expected one Revenue item, got %#v", res.LineItems)
			}
			if len(res.Warnings) != 1 || res.Warnings[0] != msgRepaired {
				t.Fatalf("expected only the repair warning, got %#v", res.Warnings)
			}
		})
	}

	res := (&Extractor{LLM: &stubClient{content: `[{"lineItem":"Revenue","value":150,"confidence":"high"}]`}}).Extract(context.Background(), "Revenue 2023")
	if len(res.Warnings) != 0 {
		t.Fatalf("strict output should not warn, got %#v", res.Warnings)
	}
}
