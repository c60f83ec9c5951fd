package validator

import (
	"context"
	"regexp"

	"github.com/devops-bizzibees/activepieces/flowstore"
)

// templateRef matches "{{step.path}}" and captures the step name
var templateRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)`)

// FlowValid decides whether the version can run and sets its Valid flag.
// It never rejects.
//
// A version is valid when it has at least one step, the first step uses a
// trigger component, no later step is a trigger, every step is valid, and
// every template reference names a step that comes earlier.
type FlowValid struct {
	Schemas SchemaProvider
}

// Name implements Stage
func (FlowValid) Name() string {
	return StageFlowValid
}

// Construct implements Stage
func (s FlowValid) Construct(ctx context.Context, _ StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	out := version.Clone()
	out.Valid = s.valid(ctx, out)
	return out, nil
}

func (s FlowValid) valid(ctx context.Context, version *flowstore.FlowVersion) bool {
	entry, ok := version.TriggerStep()
	if !ok || entry.Type != flowstore.StepTrigger {
		return false
	}
	schema, err := s.Schemas.GetSchema(ctx, entry.Component)
	if err != nil || !schema.TriggerCapable() {
		return false
	}

	earlier := make(map[string]bool, len(version.Steps))
	for i, step := range version.Steps {
		if i > 0 && step.Type == flowstore.StepTrigger {
			return false
		}
		if !step.Valid {
			return false
		}
		for _, ref := range References(step.Settings) {
			if !earlier[ref] {
				return false
			}
		}
		earlier[step.Name] = true
	}
	return true
}

// References returns the step names referenced by templates anywhere in
// settings, in no particular order and possibly repeated.
func References(settings map[string]any) []string {
	var refs []string
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range templateRef.FindAllStringSubmatch(val, -1) {
				refs = append(refs, m[1])
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		case []string:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(settings)
	return refs
}
