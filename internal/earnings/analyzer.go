// Package earnings assesses management commentary from earnings calls.
package earnings

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"research-portal/internal/coerce"
	"research-portal/internal/llm"
	"research-portal/internal/shared/telemetry"
)

const (
	ToneOptimistic  = "optimistic"
	ToneCautious    = "cautious"
	ToneNeutral     = "neutral"
	TonePessimistic = "pessimistic"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

const (
	completionTemperature = 0.2

	shortDocumentRunes = 500
	maxPositives       = 5
	maxConcerns        = 5
	maxInitiatives     = 3
)

const (
	msgShortDocument      = "Document is quite short - analysis may be incomplete"
	msgNoNumbers          = "No numerical data found - document may not be an earnings call or financial document"
	msgToneUnparseable    = "Tone analysis returned unparseable format"
	msgToneRepaired       = "Tone analysis response required JSON repair"
	msgToneFailed         = "Tone analysis failed: "
	msgExtractUnparseable = "Extraction returned unparseable format - using partial results"
	msgExtractRepaired    = "Extraction response required JSON repair"
	msgExtractFailed      = "Data extraction failed: "
	msgNoPositives        = "No key positives extracted - document may lack forward-looking statements"
	msgNoConcerns         = "No concerns/challenges identified - document may be incomplete transcript"
	msgNoForwardGuidance  = "Limited forward guidance extracted - check original document for guidance section"
)

// ForwardGuidance holds what management said about upcoming periods.
type ForwardGuidance struct {
	Revenue *string  `json:"revenue,omitempty"`
	Margin  *string  `json:"margin,omitempty"`
	Capex   *string  `json:"capex,omitempty"`
	Other   []string `json:"other,omitempty"`
}

// Empty reports whether no guidance key was extracted.
func (g ForwardGuidance) Empty() bool {
	return g.Revenue == nil && g.Margin == nil && g.Capex == nil && g.Other == nil
}

// Result is the outcome of one analysis.
type Result struct {
	ManagementTone      string          `json:"managementTone"`
	ConfidenceLevel     string          `json:"confidenceLevel"`
	KeyPositives        []string        `json:"keyPositives"`
	KeyConcerns         []string        `json:"keyConcerns"`
	ForwardGuidance     ForwardGuidance `json:"forwardGuidance"`
	CapacityUtilization *string         `json:"capacityUtilization,omitempty"`
	GrowthInitiatives   []string        `json:"growthInitiatives"`
	AnalyzedLength      int             `json:"analyzedLength"`
	DataQuality         []string        `json:"dataQuality"`
	Warnings            []string        `json:"warnings"`
}

// Analyzer runs the tone and extraction completions over a transcript.
type Analyzer struct {
	LLM llm.Client
	// DisableRepair turns off JSON repair of malformed model output.
	DisableRepair bool
}

// stages run in order over a shared result. A stage never aborts the run;
// it records problems on the result and returns.
var stages = []func(ctx context.Context, a *Analyzer, text string, res *Result){
	precheck,
	analyzeTone,
	extractHighlights,
	postcheck,
	truncateLists,
}

// Analyze never returns an error. Completion failures and unusable output
// are reported through Result.Warnings and Result.DataQuality.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	res := Result{
		ManagementTone:    ToneNeutral,
		ConfidenceLevel:   ConfidenceLow,
		KeyPositives:      []string{},
		KeyConcerns:       []string{},
		GrowthInitiatives: []string{},
		AnalyzedLength:    utf8.RuneCountInString(text),
		DataQuality:       []string{},
		Warnings:          []string{},
	}
	for _, run := range stages {
		run(ctx, a, text, &res)
	}

	telemetry.Info("earnings.analyzed", map[string]any{
		"tone":         res.ManagementTone,
		"confidence":   res.ConfidenceLevel,
		"positives":    len(res.KeyPositives),
		"concerns":     len(res.KeyConcerns),
		"initiatives":  len(res.GrowthInitiatives),
		"data_quality": len(res.DataQuality),
		"warnings":     len(res.Warnings),
		"text_chars":   res.AnalyzedLength,
	})
	return res
}

func precheck(_ context.Context, _ *Analyzer, text string, res *Result) {
	if res.AnalyzedLength < shortDocumentRunes {
		res.Warnings = append(res.Warnings, msgShortDocument)
	}
	if strings.IndexFunc(text, unicode.IsDigit) < 0 {
		res.Warnings = append(res.Warnings, msgNoNumbers)
	}
}

func (a *Analyzer) complete(ctx context.Context, text, instructions string) (coerce.Result, error) {
	if a.LLM == nil {
		return coerce.Result{}, llm.CheckConfigured(nil)
	}
	resp, err := a.LLM.Complete(ctx, llm.Request{
		Prompt:      llm.BuildExtractionPrompt(text, instructions, nil),
		Temperature: llm.Temperature(completionTemperature),
	})
	if err != nil {
		return coerce.Result{}, err
	}
	return coerce.ParseWith(resp.Content, coerce.Options{
		Repair: !a.DisableRepair,
		Want:   coerce.ObjectKind,
	}), nil
}

func analyzeTone(ctx context.Context, a *Analyzer, text string, res *Result) {
	parsed, err := a.complete(ctx, text, toneInstructions)
	if err != nil {
		telemetry.Warn("earnings.tone.failed", map[string]any{"error": llm.SanitizeError(err)})
		res.Warnings = append(res.Warnings, msgToneFailed+llm.SanitizeError(err))
		return
	}
	obj, ok := parsed.AsObject()
	if !ok {
		res.DataQuality = append(res.DataQuality, msgToneUnparseable)
		return
	}
	if parsed.Status == coerce.Repaired {
		res.DataQuality = append(res.DataQuality, msgToneRepaired)
	}
	if tone, ok := enumValue(obj["tone"], ToneOptimistic, ToneCautious, ToneNeutral, TonePessimistic); ok {
		res.ManagementTone = tone
	}
	if conf, ok := enumValue(obj["confidence"], ConfidenceHigh, ConfidenceMedium, ConfidenceLow); ok {
		res.ConfidenceLevel = conf
	}
}

func extractHighlights(ctx context.Context, a *Analyzer, text string, res *Result) {
	parsed, err := a.complete(ctx, text, extractionInstructions)
	if err != nil {
		telemetry.Warn("earnings.extraction.failed", map[string]any{"error": llm.SanitizeError(err)})
		res.Warnings = append(res.Warnings, msgExtractFailed+llm.SanitizeError(err))
		return
	}
	obj, ok := parsed.AsObject()
	if !ok {
		res.DataQuality = append(res.DataQuality, msgExtractUnparseable)
		return
	}
	if parsed.Status == coerce.Repaired {
		res.DataQuality = append(res.DataQuality, msgExtractRepaired)
	}
	res.KeyPositives = stringList(obj["keyPositives"])
	res.KeyConcerns = stringList(obj["keyConcerns"])
	res.GrowthInitiatives = stringList(obj["growthInitiatives"])
	res.CapacityUtilization = optionalString(obj["capacityUtilization"])
	if guidance, ok := obj["forwardGuidance"].(map[string]any); ok {
		res.ForwardGuidance = ForwardGuidance{
			Revenue: optionalString(guidance["revenue"]),
			Margin:  optionalString(guidance["margin"]),
			Capex:   optionalString(guidance["capex"]),
		}
		if other := stringList(guidance["other"]); len(other) > 0 {
			res.ForwardGuidance.Other = other
		}
	}
}

func postcheck(_ context.Context, _ *Analyzer, _ string, res *Result) {
	if len(res.KeyPositives) == 0 {
		res.DataQuality = append(res.DataQuality, msgNoPositives)
	}
	if len(res.KeyConcerns) == 0 {
		res.DataQuality = append(res.DataQuality, msgNoConcerns)
	}
	if res.ForwardGuidance.Empty() {
		res.DataQuality = append(res.DataQuality, msgNoForwardGuidance)
	}
}

func truncateLists(_ context.Context, _ *Analyzer, _ string, res *Result) {
	res.KeyPositives = truncate(res.KeyPositives, maxPositives)
	res.KeyConcerns = truncate(res.KeyConcerns, maxConcerns)
	res.GrowthInitiatives = truncate(res.GrowthInitiatives, maxInitiatives)
}

func truncate(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// enumValue matches v case-insensitively against allowed.
func enumValue(v any, allowed ...string) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return a, true
		}
	}
	return "", false
}

// stringList keeps the non-blank strings of a JSON array in order.
func stringList(v any) []string {
	out := []string{}
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
