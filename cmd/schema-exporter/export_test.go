package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/devops-bizzibees/activepieces/component"
	"github.com/devops-bizzibees/activepieces/componentregistry"
)

func intPtr(i int) *int { return &i }

func TestExportSchema(t *testing.T) {
	schema := component.Schema{
		Name:        "http",
		Version:     "1.2.0",
		DisplayName: "HTTP Request",
		Kind:        component.KindAction,
		Config: component.ConfigSchema{
			Properties: map[string]component.PropertySchema{
				"url":     {Type: "string", Category: "basic"},
				"method":  {Type: "enum", Enum: []string{"GET", "POST"}},
				"timeout": {Type: "int", Minimum: intPtr(1), Maximum: intPtr(300)},
				"headers": {Type: "array"},
			},
			Required: []string{"url"},
		},
		JSONSchema: json.RawMessage(`{"properties": {"url": {"pattern": "^https?://"}}}`),
	}

	doc, err := exportSchema(schema)
	require.NoError(t, err)

	assert.Equal(t, draft07, doc.Schema)
	assert.Equal(t, "http.1.2.0.json", doc.ID)
	assert.Equal(t, "HTTP Request settings", doc.Title)
	assert.Equal(t, "http@1.2.0", doc.Metadata.Ref)
	assert.Equal(t, "string", doc.Properties["method"].Type)
	assert.Equal(t, []string{"GET", "POST"}, doc.Properties["method"].Enum)
	assert.Equal(t, "integer", doc.Properties["timeout"].Type)
	assert.NotNil(t, doc.Properties["headers"].Items)
	require.Len(t, doc.AllOf, 1)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	require.NoError(t, err)

	result, err := compiled.Validate(gojsonschema.NewGoLoader(map[string]any{"url": "ftp://x", "timeout": 500}))
	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.GreaterOrEqual(t, len(result.Errors()), 2, "pattern from allOf and maximum")

	result, err = compiled.Validate(gojsonschema.NewGoLoader(map[string]any{"url": "https://x", "method": "GET"}))
	require.NoError(t, err)
	assert.True(t, result.Valid())
}

func TestExportSchema_NoProperties(t *testing.T) {
	doc, err := exportSchema(component.Schema{Name: "branch", Version: "1.0.0", Kind: component.KindBranch})
	require.NoError(t, err)
	assert.NotNil(t, doc.Required)
	assert.Empty(t, doc.Properties)
	assert.Equal(t, "branch settings", doc.Title)
}

func TestJSONSchemaType(t *testing.T) {
	for in, want := range map[string]string{
		"int": "integer", "float": "number", "bool": "boolean",
		"array": "array", "object": "object", "enum": "string", "string": "string", "": "string",
	} {
		assert.Equal(t, want, jsonSchemaType(in), in)
	}
}

func TestRun_WritesSchemasAndOpenAPI(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "schemas")
	openapiPath := filepath.Join(dir, "specs", "openapi.v3.yaml")

	var logs bytes.Buffer
	require.NoError(t, run([]string{"-out", outDir, "-openapi", openapiPath}, &logs))

	builtins := componentregistry.Builtins()
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, len(builtins))

	for _, s := range builtins {
		data, err := os.ReadFile(filepath.Join(outDir, s.Name+"."+s.Version+".json"))
		require.NoError(t, err, s.Ref())
		_, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		assert.NoError(t, err, s.Ref())
	}

	data, err := os.ReadFile(openapiPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/v1/flows/{flowID}/versions/validate")
	assert.Contains(t, paths, "/api/v1/collections/{collectionID}/flows/validate")
	assert.Contains(t, paths, "/healthz")

	schemas := doc["components"].(map[string]any)["schemas"].(map[string]any)
	assert.Contains(t, schemas, "ErrorResponse")
	assert.Contains(t, schemas, "settings."+builtins[0].Ref())
	assert.Contains(t, logs.String(), "exported")
}

func TestRun_Catalog(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
components:
  - name: slack
    version: 2.0.0
    kind: ACTION
    properties:
      channel: {type: string}
    required: [channel]
`), 0o600))

	outDir := filepath.Join(dir, "schemas")
	require.NoError(t, run([]string{"-out", outDir, "-openapi", "", "-catalog", catalog}, &bytes.Buffer{}))
	assert.FileExists(t, filepath.Join(outDir, "slack.2.0.0.json"))
	assert.NoFileExists(t, filepath.Join(dir, "specs", "openapi.v3.yaml"))
}

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run([]string{"-nope"}, &bytes.Buffer{}))
}
