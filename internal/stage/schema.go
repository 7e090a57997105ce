package stage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// extractionSchema pins the extraction contract: every key present, every
// value a string. The model is told to use empty strings for missing fields;
// a reply that omits keys instead is malformed.
func extractionSchema() map[string]any {
	keys := []string{"company", "name", "title", "phone", "email", "address", "slogan", "location"}
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   keys,
	}
}

// validationSchema requires only the verdict; the stage contract says all OCR
// keys come back too, but correction output is allowed to carry extras.
func validationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"company":           map[string]any{"type": "string"},
			"name":              map[string]any{"type": "string"},
			"website":           map[string]any{"type": "string"},
			"validation_source": map[string]any{"type": "string"},
			"is_validated":      map[string]any{"type": "boolean"},
		},
		"required": []string{"is_validated"},
	}
}

func enrichmentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"about_the_company": map[string]any{"type": "string"},
			"location":          map[string]any{"type": "string"},
			"is_validated":      map[string]any{"type": "boolean"},
		},
		"required": []string{"about_the_company", "location"},
	}
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
