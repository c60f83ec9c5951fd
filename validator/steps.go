package validator

import (
	"context"
	"fmt"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
)

// Steps checks every step against the schema of its component and sets
// the per-step Valid flag.
//
// Wrong values reject the version. Missing required settings do not: the
// step is marked invalid so an unfinished draft can still be saved.
type Steps struct {
	Schemas SchemaProvider
}

// Name implements Stage
func (Steps) Name() string {
	return StageSteps
}

// Construct implements Stage
func (s Steps) Construct(ctx context.Context, _ StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	out := version.Clone()

	for i := range out.Steps {
		step := &out.Steps[i]

		if !step.Type.Valid() {
			return nil, violation(*step, i, "type", fmt.Sprintf("unknown step type %q", step.Type))
		}
		if step.Component == "" {
			return nil, violation(*step, i, "component", "step has no component")
		}

		schema, err := s.Schemas.GetSchema(ctx, step.Component)
		if err != nil {
			if errors.IsNotFound(err) || errors.IsInvalid(err) {
				return nil, violation(*step, i, "component", fmt.Sprintf("unknown component %q", step.Component))
			}
			return nil, errors.Wrap(err, "validator", "Steps", "get schema "+step.Component)
		}

		if string(schema.Kind) != string(step.Type) {
			return nil, violation(*step, i, "type",
				fmt.Sprintf("component %s is a %s component, step is %s", schema.Ref(), schema.Kind, step.Type))
		}

		complete := true
		for _, verr := range schema.Validate(step.Settings) {
			if verr.IsMissing() {
				complete = false
				continue
			}
			return nil, violation(*step, i, verr.Field, verr.Message)
		}
		step.Valid = complete
	}

	return out, nil
}

func violation(step flowstore.Step, index int, field, message string) *errors.ValidationError {
	return errors.NewValidationError(StageSteps, errors.KindSchemaViolation, step.Name, index, field, message)
}
