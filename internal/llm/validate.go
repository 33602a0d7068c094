package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	orderSchemaOnce sync.Once
	orderSchema     *jsonschema.Schema
	orderSchemaErr  error
)

// CompileSchema compiles a schema map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateOrder validates a decoded extraction object against the order schema.
func ValidateOrder(doc map[string]any) error {
	orderSchemaOnce.Do(func() {
		orderSchema, orderSchemaErr = CompileSchema(BuildOrderJSONSchema())
	})
	if orderSchemaErr != nil {
		return orderSchemaErr
	}
	// round-trip so numbers are json.Number-compatible for the validator
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := orderSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
