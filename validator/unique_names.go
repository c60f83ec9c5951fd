package validator

import (
	"context"
	"fmt"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
)

// UniqueStepNames rejects a version in which two steps share a name.
// Names are compared exactly, so "Fetch" and "fetch" are distinct.
type UniqueStepNames struct{}

// Name implements Stage
func (UniqueStepNames) Name() string {
	return StageUniqueStepNames
}

// Construct implements Stage. The version is returned unchanged.
func (UniqueStepNames) Construct(_ context.Context, _ StageContext, version *flowstore.FlowVersion) (*flowstore.FlowVersion, error) {
	seen := make(map[string]int, len(version.Steps))
	for i, step := range version.Steps {
		if first, dup := seen[step.Name]; dup {
			return nil, errors.NewValidationError(StageUniqueStepNames, errors.KindDuplicateName,
				step.Name, i, "name", fmt.Sprintf("name already used by step %d", first))
		}
		seen[step.Name] = i
	}
	return version, nil
}
