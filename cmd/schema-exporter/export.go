package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"github.com/devops-bizzibees/activepieces/component"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// ExportedSchema is the JSON Schema document for one component version
type ExportedSchema struct {
	Schema      string                    `json:"$schema" yaml:"$schema,omitempty"`
	ID          string                    `json:"$id" yaml:"$id,omitempty"`
	Type        string                    `json:"type" yaml:"type"`
	Title       string                    `json:"title" yaml:"title"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]PropertySchema `json:"properties" yaml:"properties"`
	Required    []string                  `json:"required" yaml:"required"`
	AllOf       []json.RawMessage         `json:"allOf,omitempty" yaml:"-"`
	Metadata    ComponentMetadata         `json:"x-component" yaml:"x-component"`
}

// ComponentMetadata identifies the component a schema belongs to
type ComponentMetadata struct {
	Name    string         `json:"name" yaml:"name"`
	Version string         `json:"version" yaml:"version"`
	Kind    component.Kind `json:"kind" yaml:"kind"`
	Ref     string         `json:"ref" yaml:"ref"`
}

// PropertySchema is a JSON Schema property
type PropertySchema struct {
	Type        string          `json:"type,omitempty" yaml:"type,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any             `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string        `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *int            `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *int            `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty" yaml:"items,omitempty"`
}

// exportSchema converts a registered component schema to JSON Schema and
// checks that the result compiles
func exportSchema(s component.Schema) (ExportedSchema, error) {
	properties := make(map[string]PropertySchema, len(s.Config.Properties))
	for _, name := range component.SortedPropertyNames(s.Config) {
		p := s.Config.Properties[name]
		prop := PropertySchema{
			Type:        jsonSchemaType(p.Type),
			Description: p.Description,
			Default:     p.Default,
			Enum:        p.Enum,
			Minimum:     p.Minimum,
			Maximum:     p.Maximum,
		}
		if p.Type == "array" {
			prop.Items = &PropertySchema{}
		}
		properties[name] = prop
	}

	required := s.Config.Required
	if required == nil {
		required = []string{}
	}

	title := s.DisplayName
	if title == "" {
		title = s.Name
	}

	doc := ExportedSchema{
		Schema:      draft07,
		ID:          fmt.Sprintf("%s.%s.json", s.Name, s.Version),
		Type:        "object",
		Title:       title + " settings",
		Description: s.Description,
		Properties:  properties,
		Required:    required,
		Metadata: ComponentMetadata{
			Name:    s.Name,
			Version: s.Version,
			Kind:    s.Kind,
			Ref:     s.Ref(),
		},
	}
	if len(s.JSONSchema) > 0 {
		doc.AllOf = []json.RawMessage{s.JSONSchema}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return doc, fmt.Errorf("marshal schema for %s: %w", s.Ref(), err)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data)); err != nil {
		return doc, fmt.Errorf("exported schema for %s does not compile: %w", s.Ref(), err)
	}
	return doc, nil
}

// jsonSchemaType maps component property types to JSON Schema types.
// An "enum" is a string restricted by the enum keyword.
func jsonSchemaType(propType string) string {
	switch propType {
	case "int":
		return "integer"
	case "float":
		return "number"
	case "bool":
		return "boolean"
	case "array", "object":
		return propType
	default:
		return "string"
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
