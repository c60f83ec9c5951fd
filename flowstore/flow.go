package flowstore

import (
	"fmt"
	"time"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/resource"
)

// Flow is a named automation inside a collection. It owns a sequence of
// versions; LastVersion is the one the editor works on.
type Flow struct {
	// Identity
	ID           resource.ID `json:"id"`
	CollectionID resource.ID `json:"collection_id"`
	Name         string      `json:"name"`

	// Version for optimistic concurrency control
	Version int64 `json:"version"`

	LastVersion *FlowVersion `json:"last_version,omitempty"`

	// Audit
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionState tells whether a version may still be edited
type VersionState string

// VersionState constants:
//   - StateDraft: editable, replaced in place on save
//   - StateLocked: published, never modified again
const (
	StateDraft  VersionState = "DRAFT"
	StateLocked VersionState = "LOCKED"
)

// FlowVersion is one revision of a flow's step sequence.
// ID, FlowID, State and the timestamps are owned by persistence.
type FlowVersion struct {
	ID          resource.ID  `json:"id,omitempty"`
	FlowID      resource.ID  `json:"flow_id,omitempty"`
	DisplayName string       `json:"display_name"`
	State       VersionState `json:"state,omitempty"`
	Valid       bool         `json:"valid"`
	Steps       []Step       `json:"steps"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of the version, settings included
func (v *FlowVersion) Clone() *FlowVersion {
	if v == nil {
		return nil
	}
	out := *v
	if v.Steps != nil {
		out.Steps = make([]Step, len(v.Steps))
		for i, step := range v.Steps {
			out.Steps[i] = step.Clone()
		}
	}
	return &out
}

// StepByName returns the step called name and its position
func (v *FlowVersion) StepByName(name string) (*Step, int, bool) {
	for i := range v.Steps {
		if v.Steps[i].Name == name {
			return &v.Steps[i], i, true
		}
	}
	return nil, -1, false
}

// TriggerStep returns the entry step
func (v *FlowVersion) TriggerStep() (*Step, bool) {
	if len(v.Steps) == 0 {
		return nil, false
	}
	return &v.Steps[0], true
}

// Validate checks the structural fields persistence relies on. Semantic
// checks belong to the validation pipeline.
func (v *FlowVersion) Validate() error {
	if v.State != "" && v.State != StateDraft && v.State != StateLocked {
		return errors.WrapInvalid(fmt.Errorf("invalid version state: %s", v.State),
			"flowstore", "Validate", "state validation failed")
	}
	for i, step := range v.Steps {
		if step.Name == "" {
			return errors.WrapInvalid(fmt.Errorf("step at index %d has empty name", i),
				"flowstore", "Validate", "step name validation failed")
		}
		if !step.Type.Valid() {
			return errors.WrapInvalid(fmt.Errorf("step '%s' has invalid type %q", step.Name, step.Type),
				"flowstore", "Validate", "step type validation failed")
		}
	}
	return nil
}

// Validate checks the flow's own fields
func (f *Flow) Validate() error {
	if f.ID.IsZero() {
		return errors.WrapInvalid(fmt.Errorf("flow ID cannot be empty"), "flowstore", "Validate", "validation failed")
	}
	if f.CollectionID.IsZero() {
		return errors.WrapInvalid(fmt.Errorf("flow '%s' has no collection", f.ID), "flowstore", "Validate", "validation failed")
	}
	if f.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("flow name cannot be empty"), "flowstore", "Validate", "validation failed")
	}
	if f.LastVersion != nil {
		return f.LastVersion.Validate()
	}
	return nil
}
