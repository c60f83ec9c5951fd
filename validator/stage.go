package validator

import (
	"context"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/resource"
)

// Stage names, in pipeline order
const (
	StageUniqueStepNames = "unique_step_names"
	StageCodeArtifacts   = "code_artifacts"
	StageSteps           = "steps"
	StageFlowValid       = "flow_valid"
)

// StageContext is the read-only input shared by every stage of one
// validation run.
type StageContext struct {
	ProjectID    resource.ID
	CollectionID resource.ID
	Files        []artifact.File

	// Draft is the last saved version of the flow, nil for a new flow.
	Draft *flowstore.FlowVersion
}

// Stage is one step of the pipeline. Construct either rejects the version
// with an error or returns the full, possibly rewritten, version. It must
// not modify the version it is given nor the draft.
type Stage interface {
	Name() string
	Construct(ctx context.Context, sc StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error)
}

// StageFunc adapts a function to the Stage interface
type StageFunc func(ctx context.Context, sc StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error)

type funcStage struct {
	name string
	fn   StageFunc
}

// NewStage returns a Stage named name that calls fn
func NewStage(name string, fn StageFunc) Stage {
	return funcStage{name: name, fn: fn}
}

func (s funcStage) Name() string {
	return s.name
}

func (s funcStage) Construct(ctx context.Context, sc StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	return s.fn(ctx, sc, version)
}

// DefaultStages returns the four stages in their fixed order
func DefaultStages(schemas SchemaProvider, artifacts ArtifactResolver) []Stage {
	return []Stage{
		UniqueStepNames{},
		CodeArtifacts{Artifacts: artifacts},
		Steps{Schemas: schemas},
		FlowValid{Schemas: schemas},
	}
}
