package errors

import (
	"fmt"
	"strings"
)

// ValidationKind identifies which constraint a candidate flow version violated.
type ValidationKind string

// Validation kinds reported by the pipeline stages.
const (
	KindDuplicateName   ValidationKind = "duplicate_name"
	KindMissingArtifact ValidationKind = "missing_artifact"
	KindSchemaViolation ValidationKind = "schema_violation"
)

// ValidationError reports a structural or semantic problem in a candidate
// flow version. It carries enough detail for a caller to point the user at
// the offending step and field.
//
// ValidationError is always classified as invalid input.
type ValidationError struct {
	Stage   string         `json:"stage"`
	Kind    ValidationKind `json:"kind"`
	Step    string         `json:"step,omitempty"`
	Index   int            `json:"index"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ve.Stage, ve.Kind)
	if ve.Step != "" {
		fmt.Fprintf(&b, " (step %q at index %d", ve.Step, ve.Index)
		if ve.Field != "" {
			fmt.Fprintf(&b, ", field %q", ve.Field)
		}
		b.WriteString(")")
	}
	if ve.Message != "" {
		b.WriteString(": ")
		b.WriteString(ve.Message)
	}
	return b.String()
}

// NewValidationError builds a ValidationError for a step.
// Index is the step position in the version, or -1 when no step applies.
func NewValidationError(stage string, kind ValidationKind, step string, index int, field, message string) *ValidationError {
	return &ValidationError{
		Stage:   stage,
		Kind:    kind,
		Step:    step,
		Index:   index,
		Field:   field,
		Message: message,
	}
}
