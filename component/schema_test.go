package component

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func httpSchema() ConfigSchema {
	return ConfigSchema{
		Properties: map[string]PropertySchema{
			"url":             {Type: "string", Category: "basic"},
			"method":          {Type: "enum", Enum: []string{"GET", "POST"}, Category: "basic"},
			"timeout_seconds": {Type: "int", Minimum: intPtr(1), Maximum: intPtr(300)},
			"ratio":           {Type: "float"},
			"follow":          {Type: "bool"},
			"headers":         {Type: "object"},
			"tags":            {Type: "array"},
		},
		Required: []string{"url"},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		field  string
		code   string
	}{
		{"missing required", map[string]any{}, "url", "required"},
		{"null required", map[string]any{"url": nil}, "url", "required"},
		{"wrong string type", map[string]any{"url": 42}, "url", "type"},
		{"enum", map[string]any{"url": "x", "method": "TRACE"}, "method", "enum"},
		{"enum type", map[string]any{"url": "x", "method": 1}, "method", "type"},
		{"below min", map[string]any{"url": "x", "timeout_seconds": 0}, "timeout_seconds", "min"},
		{"above max", map[string]any{"url": "x", "timeout_seconds": float64(900)}, "timeout_seconds", "max"},
		{"fractional int", map[string]any{"url": "x", "timeout_seconds": 1.5}, "timeout_seconds", "type"},
		{"float type", map[string]any{"url": "x", "ratio": "high"}, "ratio", "type"},
		{"bool type", map[string]any{"url": "x", "follow": "yes"}, "follow", "type"},
		{"object type", map[string]any{"url": "x", "headers": []any{}}, "headers", "type"},
		{"array type", map[string]any{"url": "x", "tags": "a,b"}, "tags", "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateConfig(tt.config, httpSchema())
			require.Len(t, errs, 1, "errors: %+v", errs)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	config := map[string]any{
		"url":             "https://example.com",
		"method":          "POST",
		"timeout_seconds": float64(30),
		"ratio":           0.5,
		"follow":          true,
		"headers":         map[string]any{"x": "y"},
		"tags":            []any{"a"},
		"unknown":         "kept", // lenient
	}
	assert.Empty(t, ValidateConfig(config, httpSchema()))
}

func TestValidateConfig_SortedByField(t *testing.T) {
	errs := ValidateConfig(map[string]any{"method": "TRACE", "follow": 1}, httpSchema())
	require.Len(t, errs, 3)
	assert.Equal(t, []string{"follow", "method", "url"}, []string{errs[0].Field, errs[1].Field, errs[2].Field})
	assert.True(t, errs[2].IsMissing())
	assert.False(t, errs[0].IsMissing())
}

func TestSchema_ValidateJSONSchema(t *testing.T) {
	schema := Schema{
		Name:    "http",
		Version: "1.0.0",
		Kind:    KindAction,
		Config:  httpSchema(),
		JSONSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "pattern": "^https?://"},
				"headers": {"type": "object", "additionalProperties": {"type": "string"}}
			},
			"required": ["url"]
		}`),
	}
	require.NoError(t, schema.compile())

	assert.Empty(t, schema.Validate(map[string]any{"url": "https://example.com"}))

	errs := schema.Validate(map[string]any{"url": "ftp://example.com"})
	require.Len(t, errs, 1)
	assert.Equal(t, "url", errs[0].Field)
	assert.Equal(t, "schema", errs[0].Code)

	errs = schema.Validate(map[string]any{"url": "https://x", "headers": map[string]any{"n": 1}})
	require.Len(t, errs, 1)
	assert.Equal(t, "headers", errs[0].Field)

	// Both layers report the missing url; both are "required"
	errs = schema.Validate(nil)
	require.NotEmpty(t, errs)
	for _, e := range errs {
		assert.Equal(t, "url", e.Field)
		assert.True(t, e.IsMissing())
	}
}

func TestSchema_TriggerCapable(t *testing.T) {
	assert.True(t, Schema{Kind: KindTrigger}.TriggerCapable())
	assert.False(t, Schema{Kind: KindAction}.TriggerCapable())
	assert.Equal(t, "webhook@1.0.0", Schema{Name: "webhook", Version: "1.0.0"}.Ref())
}

func TestSortedPropertyNames(t *testing.T) {
	names := SortedPropertyNames(httpSchema())
	assert.Equal(t, []string{"method", "url", "follow", "headers", "ratio", "tags", "timeout_seconds"}, names)
}
