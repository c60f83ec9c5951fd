package component

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/errors"
)

const slackCatalog = `
components:
  - name: slack
    version: 1.2.0
    display_name: Slack
    kind: ACTION
    properties:
      channel:
        type: string
        category: basic
      text:
        type: string
      retries:
        type: int
        minimum: 0
        maximum: 5
    required: [channel, text]
    json_schema: |
      {"properties": {"channel": {"type": "string", "pattern": "^#"}}}
  - name: cron
    version: 1.0.0
    kind: TRIGGER
    properties:
      expression:
        type: string
    required: [expression]
`

func TestLoadCatalog(t *testing.T) {
	schemas, err := LoadCatalog(strings.NewReader(slackCatalog))
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	slack := schemas[0]
	assert.Equal(t, "slack@1.2.0", slack.Ref())
	assert.Equal(t, KindAction, slack.Kind)
	assert.Equal(t, []string{"channel", "text"}, slack.Config.Required)
	require.NotNil(t, slack.Config.Properties["retries"].Maximum)
	assert.Equal(t, 5, *slack.Config.Properties["retries"].Maximum)
	assert.NotEmpty(t, slack.JSONSchema)

	r := NewRegistry()
	require.NoError(t, r.RegisterAll(schemas))

	got, err := r.GetSchema(context.Background(), "slack")
	require.NoError(t, err)
	errs := got.Validate(map[string]any{"channel": "general", "text": "hi"})
	require.Len(t, errs, 1)
	assert.Equal(t, "channel", errs[0].Field)

	cron, err := r.GetSchema(context.Background(), "cron@1.0.0")
	require.NoError(t, err)
	assert.True(t, cron.TriggerCapable())
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("components:\n  - name: x\n    colour: blue\n"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err), "unknown keys are rejected")

	_, err = LoadCatalog(strings.NewReader("components:\n  - name: x\n    json_schema: '{nope'\n"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	schemas, err := LoadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, schemas)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "components.yaml")
	require.NoError(t, os.WriteFile(path, []byte(slackCatalog), 0o600))

	schemas, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, schemas, 2)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
