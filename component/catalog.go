package component

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devops-bizzibees/activepieces/errors"
)

// catalogFile is the on-disk YAML layout of a component catalog:
//
//	components:
//	  - name: slack
//	    version: 1.2.0
//	    kind: ACTION
//	    properties:
//	      channel: {type: string}
//	    required: [channel]
//	    json_schema: |
//	      {"properties": {"channel": {"pattern": "^#"}}}
type catalogFile struct {
	Components []catalogEntry `yaml:"components"`
}

type catalogEntry struct {
	Name        string                    `yaml:"name"`
	Version     string                    `yaml:"version"`
	DisplayName string                    `yaml:"display_name"`
	Description string                    `yaml:"description"`
	Kind        Kind                      `yaml:"kind"`
	Properties  map[string]PropertySchema `yaml:"properties"`
	Required    []string                  `yaml:"required"`
	JSONSchema  string                    `yaml:"json_schema"`
}

// LoadCatalog parses a YAML component catalog
func LoadCatalog(r io.Reader) ([]Schema, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.WrapInvalid(err, "component", "LoadCatalog", "decode YAML")
	}

	schemas := make([]Schema, 0, len(file.Components))
	for i, entry := range file.Components {
		schema := Schema{
			Name:        entry.Name,
			Version:     entry.Version,
			DisplayName: entry.DisplayName,
			Description: entry.Description,
			Kind:        entry.Kind,
			Config: ConfigSchema{
				Properties: entry.Properties,
				Required:   entry.Required,
			},
		}
		if entry.JSONSchema != "" {
			if !json.Valid([]byte(entry.JSONSchema)) {
				return nil, errors.WrapInvalid(
					fmt.Errorf("component %d (%s): json_schema is not valid JSON", i, entry.Name),
					"component", "LoadCatalog", "parse json_schema")
			}
			schema.JSONSchema = json.RawMessage(entry.JSONSchema)
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// LoadCatalogFile parses the YAML catalog at path
func LoadCatalogFile(path string) ([]Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "component", "LoadCatalogFile", "open catalog")
	}
	defer f.Close()
	return LoadCatalog(f)
}

// RegisterAll registers every schema, stopping at the first failure
func (r *Registry) RegisterAll(schemas []Schema) error {
	for _, schema := range schemas {
		if err := r.Register(schema); err != nil {
			return err
		}
	}
	return nil
}
