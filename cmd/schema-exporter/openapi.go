package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devops-bizzibees/activepieces/service"
)

// OpenAPIDocument is the subset of OpenAPI 3.0 the exporter writes
type OpenAPIDocument struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       InfoObject          `yaml:"info"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components ComponentsObject    `yaml:"components"`
	Tags       []TagObject         `yaml:"tags"`
}

// InfoObject contains API metadata
type InfoObject struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// PathItem describes operations available on a path
type PathItem struct {
	Get  *Operation `yaml:"get,omitempty"`
	Post *Operation `yaml:"post,omitempty"`
}

// Operation describes a single API operation
type Operation struct {
	Summary     string              `yaml:"summary"`
	Description string              `yaml:"description,omitempty"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []Parameter         `yaml:"parameters,omitempty"`
	RequestBody *RequestBody        `yaml:"requestBody,omitempty"`
	Responses   map[string]Response `yaml:"responses"`
}

// Parameter describes an operation parameter
type Parameter struct {
	Name        string `yaml:"name"`
	In          string `yaml:"in"`
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
	Schema      any    `yaml:"schema"`
}

// RequestBody describes accepted request payloads
type RequestBody struct {
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

// Response describes an operation response
type Response struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

// MediaType describes a media type and schema
type MediaType struct {
	Schema any `yaml:"schema"`
}

// ComponentsObject holds reusable schemas
type ComponentsObject struct {
	Schemas map[string]any `yaml:"schemas"`
}

// TagObject defines an API tag
type TagObject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema string) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: ref(schema)}}
}

// errorResponses are shared by both validate operations
func errorResponses() map[string]Response {
	return map[string]Response{
		"400": {Description: "Malformed request body", Content: jsonBody("ErrorResponse")},
		"403": {Description: "Caller may not see the flow or collection", Content: jsonBody("ErrorResponse")},
		"404": {Description: "Flow, collection or resource not found", Content: jsonBody("ErrorResponse")},
		"413": {Description: "Upload too large", Content: jsonBody("ErrorResponse")},
		"422": {Description: "Version rejected by a validation stage", Content: jsonBody("ErrorResponse")},
		"500": {Description: "Internal error, reported with an incident id", Content: jsonBody("ErrorResponse")},
		"503": {Description: "Storage temporarily unavailable", Content: jsonBody("ErrorResponse")},
	}
}

func validateRequestBody() *RequestBody {
	return &RequestBody{
		Required: true,
		Content: map[string]MediaType{
			"application/json": {Schema: ref("FlowVersion")},
			"multipart/form-data": {Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"version":  ref("FlowVersion"),
					"artifact": map[string]any{"type": "array", "items": map[string]any{"type": "string", "format": "binary"}},
				},
				"required": []string{"version"},
			}},
		},
	}
}

func withResponses(ok Response) map[string]Response {
	responses := errorResponses()
	responses["200"] = ok
	return responses
}

func principalParam() Parameter {
	return Parameter{
		Name:        service.PrincipalHeader,
		In:          "header",
		Description: "Caller identity set by the gateway. Absent for system callers.",
		Schema:      map[string]string{"type": "string"},
	}
}

// buildOpenAPI describes the validator HTTP API. Component settings schemas
// are included under their refs.
func buildOpenAPI(exported []ExportedSchema) OpenAPIDocument {
	schemas := map[string]any{
		"FlowVersion": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":           map[string]string{"type": "string"},
				"flow_id":      map[string]string{"type": "string"},
				"display_name": map[string]string{"type": "string"},
				"state":        map[string]any{"type": "string", "enum": []string{"DRAFT", "LOCKED"}},
				"valid":        map[string]string{"type": "boolean"},
				"steps":        map[string]any{"type": "array", "items": ref("Step")},
			},
		},
		"Step": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":      map[string]string{"type": "string"},
				"type":      map[string]any{"type": "string", "enum": []string{"TRIGGER", "ACTION", "CODE", "BRANCH", "LOOP"}},
				"component": map[string]string{"type": "string"},
				"valid":     map[string]string{"type": "boolean"},
				"settings":  map[string]string{"type": "object"},
			},
			"required": []string{"name", "type"},
		},
		"ValidateResponse": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request_id": map[string]string{"type": "string"},
				"valid":      map[string]string{"type": "boolean"},
				"version":    ref("FlowVersion"),
				"flow":       map[string]string{"type": "object"},
			},
		},
		"ValidationError": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"stage":   map[string]string{"type": "string"},
				"kind":    map[string]any{"type": "string", "enum": []string{"duplicate_name", "missing_artifact", "schema_violation"}},
				"step":    map[string]string{"type": "string"},
				"index":   map[string]string{"type": "integer"},
				"field":   map[string]string{"type": "string"},
				"message": map[string]string{"type": "string"},
			},
		},
		"ErrorResponse": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request_id": map[string]string{"type": "string"},
				"error":      map[string]string{"type": "string"},
				"class":      map[string]string{"type": "string"},
				"validation": ref("ValidationError"),
			},
		},
	}

	for _, s := range exported {
		schemas["settings."+s.Metadata.Ref] = ExportedSchema{
			Type:        s.Type,
			Title:       s.Title,
			Description: s.Description,
			Properties:  s.Properties,
			Required:    s.Required,
			Metadata:    s.Metadata,
		}
	}

	prefix := service.APIPrefix
	paths := map[string]PathItem{
		prefix + "flows/{flowID}/versions/validate": {
			Post: &Operation{
				Summary:     "Validate a candidate flow version",
				Description: "Runs the validation pipeline on a draft version of an existing flow. With save=true a valid version is stored.",
				Tags:        []string{"Validation"},
				Parameters: []Parameter{
					{Name: "flowID", In: "path", Required: true, Schema: map[string]string{"type": "string"}},
					{Name: "save", In: "query", Description: "Store the version when it is valid", Schema: map[string]string{"type": "boolean"}},
					principalParam(),
				},
				RequestBody: validateRequestBody(),
				Responses:   withResponses(Response{Description: "Validated version", Content: jsonBody("ValidateResponse")}),
			},
		},
		prefix + "collections/{collectionID}/flows/validate": {
			Post: &Operation{
				Summary: "Validate a version for a new flow in a collection",
				Tags:    []string{"Validation"},
				Parameters: []Parameter{
					{Name: "collectionID", In: "path", Required: true, Schema: map[string]string{"type": "string"}},
					principalParam(),
				},
				RequestBody: validateRequestBody(),
				Responses:   withResponses(Response{Description: "Validated version", Content: jsonBody("ValidateResponse")}),
			},
		},
		"/healthz": {
			Get: &Operation{
				Summary: "Service health",
				Tags:    []string{"Health"},
				Responses: map[string]Response{
					"200": {Description: "Serving"},
					"503": {Description: "Unhealthy"},
				},
			},
		},
	}

	return OpenAPIDocument{
		OpenAPI: "3.0.3",
		Info: InfoObject{
			Title:       "Flow Validator API",
			Description: "Validates flow versions before they are stored",
			Version:     "1.0.0",
		},
		Paths:      paths,
		Components: ComponentsObject{Schemas: schemas},
		Tags: []TagObject{
			{Name: "Validation", Description: "Flow version validation"},
			{Name: "Health", Description: "Service health"},
		},
	}
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
