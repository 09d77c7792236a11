package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema returns the JSON Schema every JSON export satisfies.
func Schema() map[string]any {
	stringMap := map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"key_metrics", "tables"},
		"properties": map[string]any{
			"key_metrics": stringMap,
			"tables": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"minProperties":        1,
					"maxProperties":        1,
					"additionalProperties": false,
					"patternProperties": map[string]any{
						`^table_[1-9][0-9]*$`: map[string]any{
							"type":     "array",
							"minItems": 1,
							"items":    stringMap,
						},
					},
				},
			},
		},
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("export.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("export.json")
})

// ValidateJSON checks a JSON export against Schema.
func ValidateJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal export: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("export does not match schema: %w", err)
	}
	return nil
}
