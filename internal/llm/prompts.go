package llm

import (
	"encoding/json"
	"strings"
)

// MaxExcerptRunes bounds how much document text a prompt carries. Only the
// beginning of long documents is analyzed.
const MaxExcerptRunes = 3000

const standingRules = `Important:
- Only extract information explicitly mentioned in the text
- If information is not present, mark it as null or "Not found"
- For financial figures, ensure you include currency and units
- Be precise with numbers and dates`

// Excerpt returns the first MaxExcerptRunes characters of text.
func Excerpt(text string) string {
	n := 0
	for i := range text {
		if n == MaxExcerptRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// BuildExtractionPrompt assembles the user message: instructions, the
// document excerpt, a schema hint and the standing extraction rules.
func BuildExtractionPrompt(text, instructions string, schema map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n\nTEXT TO ANALYZE:\n")
	b.WriteString(Excerpt(text))
	b.WriteString("\n\n")
	b.WriteString(schemaHint(schema))
	b.WriteString("\n\n")
	b.WriteString(standingRules)
	return b.String()
}

func schemaHint(schema map[string]any) string {
	if len(schema) == 0 {
		return "Please provide a structured response."
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return "Please provide a structured response."
	}
	return "Please respond with valid JSON matching this schema: " + string(raw)
}
