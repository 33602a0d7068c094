package llm

// BuildOrderJSONSchema returns a JSON-Schema (draft 2020-12 subset) for the
// sanitized extraction object.
func BuildOrderJSONSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workName": map[string]any{"type": "string", "minLength": 1},
			"quantity": map[string]any{"type": "number", "exclusiveMinimum": 0},
			"price":    map[string]any{"type": "number", "minimum": 0},
			"total":    map[string]any{"type": "number", "minimum": 0},
		},
		"required": []string{"workName", "quantity", "price", "total"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plate":               map[string]any{"type": "string"},
			"vin":                 map[string]any{"type": "string"},
			"mileage":             map[string]any{"type": "string"},
			"city":                map[string]any{"type": "string"},
			"date":                map[string]any{"type": "string"},
			"items":               map[string]any{"type": "array", "items": item},
			"needsOperatorReview": map[string]any{"type": "boolean"},
			"reviewReason":        map[string]any{"type": []string{"string", "null"}},
		},
		"required": []string{"items"},
	}
}
