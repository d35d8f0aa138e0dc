package financial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// LineItemSchema describes one well-formed line item as the model is asked
// to produce it.
var LineItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"category":   map[string]any{"type": "string"},
		"lineItem":   map[string]any{"type": "string"},
		"value":      map[string]any{"type": []any{"number", "null"}},
		"currency":   map[string]any{"type": "string"},
		"unit":       map[string]any{"type": "string"},
		"period":     map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "string", "enum": []any{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}},
		"notes":      map[string]any{"type": "string"},
	},
	"required": []any{"lineItem", "value", "confidence"},
}

// LineItemsSchema is the advisory schema sent with the extraction prompt.
var LineItemsSchema = map[string]any{
	"type":  "array",
	"items": LineItemSchema,
}

var (
	itemSchemaOnce sync.Once
	itemSchema     *jsonschema.Schema
	itemSchemaErr  error
)

func compiledItemSchema() (*jsonschema.Schema, error) {
	itemSchemaOnce.Do(func() {
		raw, err := json.Marshal(LineItemSchema)
		if err != nil {
			itemSchemaErr = fmt.Errorf("marshal line item schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("line_item.json", bytes.NewReader(raw)); err != nil {
			itemSchemaErr = fmt.Errorf("add line item schema: %w", err)
			return
		}
		itemSchema, itemSchemaErr = compiler.Compile("line_item.json")
	})
	return itemSchema, itemSchemaErr
}

// ValidateItem checks one decoded item against LineItemSchema.
func ValidateItem(item any) error {
	schema, err := compiledItemSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(item); err != nil {
		return fmt.Errorf("line item does not match schema: %w", err)
	}
	return nil
}
