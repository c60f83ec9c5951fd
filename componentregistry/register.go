// Package componentregistry registers the built-in flow components.
package componentregistry

import (
	"encoding/json"
	"errors"

	"github.com/devops-bizzibees/activepieces/component"
	pkgerrors "github.com/devops-bizzibees/activepieces/errors"
)

func intPtr(i int) *int {
	return &i
}

// Builtins returns the schemas of the built-in components:
//
// Triggers:
//   - webhook: starts a run on an incoming HTTP request
//   - schedule: starts a run on a cron expression
//
// Steps:
//   - code: runs an uploaded code artifact
//   - http: sends an HTTP request
//   - branch: evaluates a condition and picks a path
//   - loop: iterates over a list
//   - storage: reads and writes the project key-value store
func Builtins() []component.Schema {
	return []component.Schema{
		{
			Name:        "webhook",
			Version:     "1.0.0",
			DisplayName: "Webhook",
			Description: "Starts the flow when an HTTP request arrives",
			Kind:        component.KindTrigger,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"method": {Type: "enum", Enum: []string{"GET", "POST", "PUT"}, Default: "POST", Category: "basic"},
					"sync":   {Type: "bool", Description: "Reply with the flow output", Default: false},
				},
			},
		},
		{
			Name:        "schedule",
			Version:     "1.0.0",
			DisplayName: "Schedule",
			Description: "Starts the flow on a cron schedule",
			Kind:        component.KindTrigger,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"cron":     {Type: "string", Description: "Five-field cron expression", Category: "basic"},
					"timezone": {Type: "string", Default: "UTC"},
				},
				Required: []string{"cron"},
			},
			JSONSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"cron": {"type": "string", "pattern": "^\\S+( \\S+){4}$"}
				}
			}`),
		},
		{
			Name:        "code",
			Version:     "1.0.0",
			DisplayName: "Code",
			Description: "Runs an uploaded code artifact",
			Kind:        component.KindCode,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"artifact":      {Type: "string", Description: "Uploaded file name", Category: "basic"},
					"artifact_url":  {Type: "string", Description: "Resolved artifact location"},
					"artifact_hash": {Type: "string", Description: "SHA-256 of the artifact"},
					"input":         {Type: "object", Description: "Values passed to the code", Category: "basic"},
				},
				Required: []string{"artifact"},
			},
		},
		{
			Name:        "http",
			Version:     "1.0.0",
			DisplayName: "HTTP Request",
			Description: "Sends an HTTP request",
			Kind:        component.KindAction,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"url":             {Type: "string", Category: "basic"},
					"method":          {Type: "enum", Enum: []string{"GET", "POST", "PUT", "PATCH", "DELETE"}, Default: "GET", Category: "basic"},
					"headers":         {Type: "object"},
					"body":            {Type: "object"},
					"timeout_seconds": {Type: "int", Minimum: intPtr(1), Maximum: intPtr(300), Default: 30},
				},
				Required: []string{"url", "method"},
			},
			JSONSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"url": {"type": "string", "pattern": "^(https?://|\\{\\{)"},
					"headers": {"type": "object", "additionalProperties": {"type": "string"}}
				}
			}`),
		},
		{
			Name:        "branch",
			Version:     "1.0.0",
			DisplayName: "Branch",
			Description: "Chooses a path based on a condition",
			Kind:        component.KindBranch,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"condition": {Type: "string", Category: "basic"},
					"operator":  {Type: "enum", Enum: []string{"equals", "not_equals", "contains", "exists"}, Default: "equals"},
					"value":     {Type: "string"},
				},
				Required: []string{"condition"},
			},
		},
		{
			Name:        "loop",
			Version:     "1.0.0",
			DisplayName: "Loop",
			Description: "Repeats the following steps for every item of a list",
			Kind:        component.KindLoop,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"items":          {Type: "string", Description: "Template resolving to a list", Category: "basic"},
					"max_iterations": {Type: "int", Minimum: intPtr(1), Maximum: intPtr(1000), Default: 100},
				},
				Required: []string{"items"},
			},
		},
		{
			Name:        "storage",
			Version:     "1.0.0",
			DisplayName: "Storage",
			Description: "Reads and writes the project key-value store",
			Kind:        component.KindAction,
			Config: component.ConfigSchema{
				Properties: map[string]component.PropertySchema{
					"operation": {Type: "enum", Enum: []string{"get", "put", "delete"}, Category: "basic"},
					"key":       {Type: "string", Category: "basic"},
					"value":     {Type: "string"},
				},
				Required: []string{"operation", "key"},
			},
		},
	}
}

// Register registers all built-in components with the provided registry.
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	for _, schema := range Builtins() {
		if err := registry.Register(schema); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register",
				schema.Ref()+" component registration")
		}
	}
	return nil
}
