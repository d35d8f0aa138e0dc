package financial

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"research-portal/internal/coerce"
	"research-portal/internal/llm"
	"research-portal/internal/shared/telemetry"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

const extractionTemperature = 0.2

const extractionInstructions = `
You are a financial statement analyst. Extract income statement line items from this financial document.

For each line item found:
1. Name the category (e.g., "Income Statement", "Balance Sheet", "Cash Flow")
2. Extract the line item (e.g., "Revenue", "Cost of Goods Sold")
3. Extract the numeric value (remove commas and symbols)
4. Note the currency (USD, EUR, etc.)
5. Note the unit (millions, billions, units)
6. Note the period/year if multiple years

Return a JSON array of objects with this structure:
[
  {
    "category": "Income Statement",
    "lineItem": "Revenue",
    "value": 150000,
    "currency": "USD",
    "unit": "millions",
    "period": "2023",
    "confidence": "high",
    "notes": "From page 12"
  }
]

If a figure is mentioned but unclear, set value to null and mark confidence as "low".
Include ALL income statement items you can identify.
`

const (
	msgUnparseable      = "Could not parse extracted financial items as JSON"
	msgRepaired         = "Extraction response required JSON repair - please verify line items"
	msgNoItems          = "No financial line items could be extracted. Document may not be a financial statement."
	msgLowConfidence    = "%d items extracted with low confidence - please verify manually"
	msgMissingValues    = `%d items have missing values - marked as "Not found" in the spreadsheet`
	msgNormalized       = "%d items did not match the line-item schema and were normalized"
	msgSummary          = "Extracted financial data from document. Found %d line items across years: %s"
	msgNotesSuccess     = "Successfully extracted line items. Please review low-confidence items and missing values."
	msgNotesIssues      = "Extraction encountered issues. Please review warnings."
	msgFailedSummary    = "Financial extraction partially failed"
	msgFailedNotes      = "Extraction could not complete. Check warnings for details."
	msgCompletionFailed = "LLM extraction failed: %s"
)

// LineItem is one figure pulled from a statement. A nil Value means the
// figure was mentioned but could not be read.
type LineItem struct {
	Category   string   `json:"category"`
	LineItem   string   `json:"lineItem"`
	Value      *float64 `json:"value"`
	Currency   string   `json:"currency"`
	Unit       string   `json:"unit"`
	Period     string   `json:"period,omitempty"`
	Confidence string   `json:"confidence"`
	Notes      string   `json:"notes,omitempty"`
}

// Result is the outcome of one extraction run.
type Result struct {
	DocumentSummary string     `json:"documentSummary"`
	YearsFound      []string   `json:"yearsFound"`
	LineItems       []LineItem `json:"lineItems"`
	ExtractionNotes string     `json:"extractionNotes"`
	Warnings        []string   `json:"warnings"`
}

// Extractor turns statement text into line items with one completion call.
type Extractor struct {
	LLM llm.Client
	// DisableRepair turns off JSON repair of malformed model output.
	DisableRepair bool
}

// Extract never returns an error. Completion failures and unusable output
// are reported through Result.Warnings.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	if e.LLM == nil {
		return failedResult(llm.CheckConfigured(nil))
	}

	resp, err := e.LLM.Complete(ctx, llm.Request{
		Prompt:      llm.BuildExtractionPrompt(text, extractionInstructions, LineItemsSchema),
		Schema:      LineItemsSchema,
		Temperature: llm.Temperature(extractionTemperature),
	})
	if err != nil {
		telemetry.Warn("financial.extract.failed", map[string]any{
			"error": llm.SanitizeError(err),
		})
		return failedResult(err)
	}

	warnings := []string{}
	parsed := coerce.ParseWith(resp.Content, coerce.Options{Repair: !e.DisableRepair})
	rawItems, status := itemsFrom(parsed, e.DisableRepair)
	switch status {
	case coerce.Unparseable:
		warnings = append(warnings, msgUnparseable)
	case coerce.Repaired:
		warnings = append(warnings, msgRepaired)
	}

	items, normalized := normalizeItems(rawItems)
	if normalized > 0 {
		warnings = append(warnings, fmt.Sprintf(msgNormalized, normalized))
	}

	years := FindYears(text)
	warnings = append(warnings, qualityWarnings(items)...)

	notes := msgNotesSuccess
	if len(items) == 0 {
		notes = msgNotesIssues
	}
	yearList := strings.Join(years, ", ")
	if yearList == "" {
		yearList = "Not specified"
	}

	telemetry.Info("financial.extracted", map[string]any{
		"items":         len(items),
		"years":         len(years),
		"warnings":      len(warnings),
		"coerce_status": parsed.Status.String(),
		"text_chars":    len([]rune(text)),
	})

	return Result{
		DocumentSummary: fmt.Sprintf(msgSummary, len(items), yearList),
		YearsFound:      years,
		LineItems:       items,
		ExtractionNotes: notes,
		Warnings:        warnings,
	}
}

func failedResult(err error) Result {
	return Result{
		DocumentSummary: msgFailedSummary,
		YearsFound:      []string{},
		LineItems:       []LineItem{},
		ExtractionNotes: msgFailedNotes,
		Warnings:        []string{fmt.Sprintf(msgCompletionFailed, llm.SanitizeError(err))},
	}
}

var envelopeKeys = []string{"lineItems", "items", "data"}

// itemsFrom locates the item array in a coerced payload. A bare array is
// used directly; an object may wrap the array or carry it as a string under
// "content". The status is Repaired when either layer needed repair and
// Unparseable when no array was found.
func itemsFrom(parsed coerce.Result, disableRepair bool) ([]any, coerce.Status) {
	if arr, ok := parsed.AsArray(); ok {
		return arr, parsed.Status
	}
	obj, ok := parsed.AsObject()
	if !ok {
		return nil, coerce.Unparseable
	}
	if content, ok := obj["content"].(string); ok {
		inner := coerce.ParseWith(content, coerce.Options{Repair: !disableRepair, Want: coerce.ArrayKind})
		if arr, ok := inner.AsArray(); ok {
			if parsed.Status == coerce.Repaired {
				return arr, coerce.Repaired
			}
			return arr, inner.Status
		}
		return nil, coerce.Unparseable
	}
	for _, key := range envelopeKeys {
		if arr, ok := obj[key].([]any); ok {
			return arr, parsed.Status
		}
	}
	return nil, coerce.Unparseable
}

// normalizeItems converts decoded entries into line items. It returns how
// many entries failed schema validation or were not objects.
func normalizeItems(raw []any) ([]LineItem, int) {
	items := make([]LineItem, 0, len(raw))
	normalized := 0
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			normalized++
			continue
		}
		if err := ValidateItem(obj); err != nil {
			normalized++
		}
		items = append(items, toLineItem(obj))
	}
	return items, normalized
}

func toLineItem(obj map[string]any) LineItem {
	return LineItem{
		Category:   stringField(obj["category"]),
		LineItem:   stringField(obj["lineItem"]),
		Value:      ParseValue(obj["value"]),
		Currency:   stringField(obj["currency"]),
		Unit:       stringField(obj["unit"]),
		Period:     stringField(obj["period"]),
		Confidence: normalizeConfidence(obj["confidence"]),
		Notes:      stringField(obj["notes"]),
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func normalizeConfidence(v any) string {
	s, _ := v.(string)
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	default:
		return ConfidenceLow
	}
}

var valueReplacer = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "¥", "", " ", "", "\u00a0", "")

// ParseValue converts a decoded JSON value into a finite number. Numeric
// strings such as "$1,234.5" or "(12)" are accepted; anything else is nil.
func ParseValue(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := valueReplacer.Replace(strings.TrimSpace(t))
		negative := false
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			negative = true
			s = s[1 : len(s)-1]
		}
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
		if negative {
			f = -f
		}
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func qualityWarnings(items []LineItem) []string {
	if len(items) == 0 {
		return []string{msgNoItems}
	}
	var out []string
	low, missing := 0, 0
	for _, item := range items {
		if item.Confidence == ConfidenceLow {
			low++
		}
		if item.Value == nil {
			missing++
		}
	}
	if low > 0 {
		out = append(out, fmt.Sprintf(msgLowConfidence, low))
	}
	if missing > 0 {
		out = append(out, fmt.Sprintf(msgMissingValues, missing))
	}
	return out
}

var yearPattern = regexp.MustCompile(`20\d{2}`)

// FindYears returns the distinct 20xx tokens in text in order of first
// appearance.
func FindYears(text string) []string {
	years := []string{}
	seen := map[string]bool{}
	for _, y := range yearPattern.FindAllString(text, -1) {
		if seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	return years
}
