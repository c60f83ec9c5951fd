package component

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Kind is the step type a component can be used in
type Kind string

// Component kinds. They share their spelling with flow step types.
const (
	KindTrigger Kind = "TRIGGER"
	KindAction  Kind = "ACTION"
	KindCode    Kind = "CODE"
	KindBranch  Kind = "BRANCH"
	KindLoop    Kind = "LOOP"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindTrigger, KindAction, KindCode, KindBranch, KindLoop:
		return true
	}
	return false
}

// ConfigSchema describes the settings a step using the component accepts
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties" yaml:"properties"`
	Required   []string                  `json:"required" yaml:"required"`
}

// PropertySchema describes a single setting
type PropertySchema struct {
	Type        string   `json:"type" yaml:"type"` // "string", "int", "bool", "float", "enum", "array", "object"
	Description string   `json:"description" yaml:"description"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"` // "basic" or "advanced"
}

// Schema is the registered description of one component version
type Schema struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	DisplayName string       `json:"display_name,omitempty"`
	Description string       `json:"description,omitempty"`
	Kind        Kind         `json:"kind"`
	Config      ConfigSchema `json:"config"`

	// JSONSchema optionally adds JSON Schema (draft-07) constraints on the
	// whole settings object, checked after Config.
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`

	compiled *gojsonschema.Schema
}

// Ref returns the "name@version" reference for the schema
func (s Schema) Ref() string {
	return s.Name + "@" + s.Version
}

// TriggerCapable reports whether the component can start a flow
func (s Schema) TriggerCapable() bool {
	return s.Kind == KindTrigger
}

// compile prepares the JSON Schema, if any
func (s *Schema) compile() error {
	if len(s.JSONSchema) == 0 || s.compiled != nil {
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(s.JSONSchema))
	if err != nil {
		return fmt.Errorf("compile json schema for %s: %w", s.Ref(), err)
	}
	s.compiled = compiled
	return nil
}

// Validate checks settings against the property constraints and the JSON
// Schema. All failures are returned; an empty slice means valid.
func (s Schema) Validate(settings map[string]any) []ValidationError {
	if settings == nil {
		settings = map[string]any{}
	}

	errs := ValidateConfig(settings, s.Config)

	if len(s.JSONSchema) == 0 {
		return errs
	}
	if err := s.compile(); err != nil {
		return append(errs, ValidationError{Field: "", Message: err.Error(), Code: "schema"})
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(settings))
	if err != nil {
		return append(errs, ValidationError{Field: "", Message: err.Error(), Code: "schema"})
	}
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   jsonSchemaField(desc),
			Message: desc.Description(),
			Code:    jsonSchemaCode(desc),
		})
	}
	return errs
}

// jsonSchemaField maps a gojsonschema error to the offending top-level setting
func jsonSchemaField(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	field := desc.Field()
	if field == "(root)" {
		return ""
	}
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}

func jsonSchemaCode(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		return "required"
	}
	return "schema"
}
