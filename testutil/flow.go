package testutil

import (
	"encoding/json"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/flowstore"
)

// ScriptFile returns the artifact referenced by the code step of ValidVersion.
func ScriptFile() artifact.File {
	return artifact.File{
		Key:         "script.js",
		ContentType: "text/javascript",
		Data:        []byte("export const code = async (inputs) => ({ total: inputs.amount * 2 })"),
	}
}

// ValidVersion returns a fresh draft that passes every validation stage
// when ScriptFile is uploaded with it:
//
//	trigger (webhook) -> transform (code, script.js) -> notify (http)
//
// The version has no ID, so saving it creates a new version.
func ValidVersion() *flowstore.FlowVersion {
	return NewVersionBuilder("Order sync").
		Trigger("trigger", "webhook", map[string]any{"method": "POST"}).
		Code("transform", ScriptFile().Key, map[string]any{
			"input": map[string]any{"amount": "{{trigger.body.amount}}"},
		}).
		Action("notify", "http", map[string]any{
			"url":    "https://hooks.example.com/orders",
			"method": "POST",
			"body":   map[string]any{"total": "{{transform.total}}"},
		}).
		Build()
}

// NoTriggerVersion returns a draft whose entry step is an action.
func NoTriggerVersion() *flowstore.FlowVersion {
	return NewVersionBuilder("No trigger").
		Action("fetch", "http", map[string]any{"url": "https://api.example.com", "method": "GET"}).
		Build()
}

// DuplicateNamesVersion returns a draft with steps A, B, A.
func DuplicateNamesVersion() *flowstore.FlowVersion {
	return NewVersionBuilder("Duplicates").
		Trigger("A", "webhook", nil).
		Action("B", "http", map[string]any{"url": "https://api.example.com", "method": "GET"}).
		Action("A", "http", map[string]any{"url": "https://api.example.com", "method": "GET"}).
		Build()
}

// VersionJSON marshals a version the way it arrives over HTTP.
func VersionJSON(v *flowstore.FlowVersion) ([]byte, error) {
	return json.Marshal(v)
}

// VersionBuilder builds flow versions for tests
type VersionBuilder struct {
	version *flowstore.FlowVersion
}

// NewVersionBuilder creates an empty draft with the given display name
func NewVersionBuilder(displayName string) *VersionBuilder {
	return &VersionBuilder{
		version: &flowstore.FlowVersion{
			DisplayName: displayName,
			State:       flowstore.StateDraft,
			Steps:       []flowstore.Step{},
		},
	}
}

// Step appends an arbitrary step
func (b *VersionBuilder) Step(step flowstore.Step) *VersionBuilder {
	b.version.Steps = append(b.version.Steps, step)
	return b
}

// Trigger appends a TRIGGER step
func (b *VersionBuilder) Trigger(name, component string, settings map[string]any) *VersionBuilder {
	return b.Step(flowstore.Step{Name: name, Type: flowstore.StepTrigger, Component: component, Settings: settings})
}

// Action appends an ACTION step
func (b *VersionBuilder) Action(name, component string, settings map[string]any) *VersionBuilder {
	return b.Step(flowstore.Step{Name: name, Type: flowstore.StepAction, Component: component, Settings: settings})
}

// Code appends a CODE step referencing the artifact key. An empty key
// leaves the artifact setting out.
func (b *VersionBuilder) Code(name, key string, settings map[string]any) *VersionBuilder {
	merged := map[string]any{}
	for k, v := range settings {
		merged[k] = v
	}
	if key != "" {
		merged[flowstore.SettingArtifact] = key
	}
	return b.Step(flowstore.Step{Name: name, Type: flowstore.StepCode, Component: "code", Settings: merged})
}

// Build returns the version. The builder must not be reused.
func (b *VersionBuilder) Build() *flowstore.FlowVersion {
	return b.version
}
