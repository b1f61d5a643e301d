package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildSnapshotSchema describes the JSON file layout written by JSONStore.
func buildSnapshotSchema() map[string]any {
	id := map[string]any{"type": "integer"}
	str := map[string]any{"type": "string"}
	date := map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}

	category := map[string]any{
		"type":     "object",
		"required": []string{"id", "name", "color"},
		"properties": map[string]any{
			"id":    id,
			"name":  map[string]any{"type": "string", "minLength": 1},
			"color": map[string]any{"type": "string", "pattern": `^#[0-9A-Fa-f]{6}$`},
		},
	}
	client := map[string]any{
		"type":     "object",
		"required": []string{"id", "name"},
		"properties": map[string]any{
			"id":           id,
			"name":         map[string]any{"type": "string", "minLength": 1},
			"project_code": str,
			"email":        str,
		},
	}
	receipt := map[string]any{
		"type":     "object",
		"required": []string{"id", "vendor", "amount", "date", "category_id", "status"},
		"properties": map[string]any{
			"id":          id,
			"vendor":      str,
			"amount":      map[string]any{"type": "number", "minimum": 0},
			"date":        date,
			"description": str,
			"category_id": id,
			"client_id":   map[string]any{"type": []string{"integer", "null"}},
			"status":      str,
			"tags":        map[string]any{"type": []string{"array", "null"}, "items": str},
		},
	}
	batch := map[string]any{
		"type":     "object",
		"required": []string{"id", "file_name", "content_hash", "status"},
		"properties": map[string]any{
			"id":           map[string]any{"type": "string", "minLength": 36, "maxLength": 36},
			"content_hash": str,
			"status":       map[string]any{"enum": []string{"RUNNING", "IMPORTED", "FAILED"}},
		},
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"version", "categories"},
		"properties": map[string]any{
			"version":    map[string]any{"type": "integer", "minimum": 1, "maximum": snapshotVersion},
			"categories": map[string]any{"type": "array", "items": category},
			"clients":    map[string]any{"type": []string{"array", "null"}, "items": client},
			"receipts":   map[string]any{"type": []string{"array", "null"}, "items": receipt},
			"batches":    map[string]any{"type": []string{"array", "null"}, "items": batch},
		},
	}
}

// validateJSONAgainstSchema validates data against schemaMap.
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("snapshot.json")
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
