package componentregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/component"
	"github.com/devops-bizzibees/activepieces/errors"
)

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))
	assert.Len(t, registry.ListSchemas(), len(Builtins()))

	// Registering twice collides
	err := Register(registry)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.True(t, errors.IsFatal(Register(nil)))
}

func TestBuiltins_Kinds(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))
	ctx := context.Background()

	triggers := map[string]bool{"webhook": true, "schedule": true}
	for _, schema := range registry.ListSchemas() {
		assert.Equal(t, triggers[schema.Name], schema.TriggerCapable(), schema.Name)
	}

	code, err := registry.GetSchema(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, component.KindCode, code.Kind)
}

func TestBuiltins_Settings(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))
	ctx := context.Background()

	tests := []struct {
		ref      string
		settings map[string]any
		fields   []string
	}{
		{"schedule", map[string]any{"cron": "*/5 * * * *"}, nil},
		{"schedule", map[string]any{"cron": "every minute"}, []string{"cron"}},
		{"http", map[string]any{"url": "https://api.example.com", "method": "POST"}, nil},
		{"http", map[string]any{"url": "{{trigger.body.callback}}", "method": "GET"}, nil},
		{"http", map[string]any{"url": "mailto:x", "method": "GET"}, []string{"url"}},
		{"http", map[string]any{"url": "https://x", "method": "GET", "timeout_seconds": 0}, []string{"timeout_seconds"}},
		{"http", map[string]any{"url": "https://x", "method": "GET", "headers": map[string]any{"n": 1}}, []string{"headers"}},
		{"loop", map[string]any{"items": "{{fetch.body}}", "max_iterations": 5000}, []string{"max_iterations"}},
		{"storage", map[string]any{"operation": "drop", "key": "k"}, []string{"operation"}},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			schema, err := registry.GetSchema(ctx, tt.ref)
			require.NoError(t, err)

			var fields []string
			for _, e := range schema.Validate(tt.settings) {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
