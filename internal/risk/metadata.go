package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FeatureColumns is the trained column order. The metadata sidecar must list
// exactly these, in this order.
var FeatureColumns = []string{"amount", "geo", "bin", "merchant_age", "hour"}

// Metadata describes the classifier artifact: tensor names/shapes and the
// feature column order it was trained with.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Columns     []string `json:"columns"`
}

// metadataSchema returns a JSON-Schema (draft 2020-12 subset) as a generic
// map, used to validate the sidecar before the ONNX session is built.
func metadataSchema() map[string]any {
	intArray := func(minItems int) map[string]any {
		return map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "integer", "minimum": 1},
			"minItems": minItems,
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input_name":   map[string]any{"type": "string", "minLength": 1},
			"output_name":  map[string]any{"type": "string", "minLength": 1},
			"input_shape":  intArray(2),
			"output_shape": intArray(2),
			"columns": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"minItems": len(FeatureColumns),
				"maxItems": len(FeatureColumns),
			},
		},
		"required":             []string{"input_name", "output_name", "input_shape", "output_shape", "columns"},
		"additionalProperties": false,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
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

// LoadMetadata reads, schema-validates, and decodes the metadata sidecar. The
// column order is checked against FeatureColumns so a retrained artifact with
// a different layout is rejected at startup instead of scoring garbage.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	if err := ValidateJSONAgainstSchema(metadataSchema(), raw); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}

	for i, col := range meta.Columns {
		if col != FeatureColumns[i] {
			return Metadata{}, fmt.Errorf("metadata column %d is %q, want %q", i, col, FeatureColumns[i])
		}
	}
	return meta, nil
}
