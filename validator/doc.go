// Package validator turns a proposed flow version into a validated,
// normalized version ready to be saved.
//
// # Pipeline
//
// Validator.ValidateAndConstruct first places the flow in the resource
// hierarchy (collection, then project), loads the flow's last saved version
// as the draft, then folds the candidate through four stages in a fixed
// order:
//
//  1. unique_step_names: rejects duplicate step names (duplicate_name)
//  2. code_artifacts: attaches uploaded code files to CODE steps, or
//     reuses the draft's, else rejects (missing_artifact)
//  3. steps: checks settings against the component schema
//     (schema_violation) and sets each step's Valid flag
//  4. flow_valid: sets the version's Valid flag, never rejects
//
// The first stage error ends the run; there is no partial result. Stage
// rejections are *errors.ValidationError values and classify as invalid.
//
// A version may be saved while Valid is false. Missing required settings,
// a missing trigger or a template that points at a later step all produce
// an invalid but accepted draft.
//
// # Errors
//
// Hierarchy lookups keep their class (not found, permission denied).
// Failure to read the draft of a flow that the hierarchy says exists is
// reported to the errors.Sink and surfaces only as an internal error.
// Other collaborator failures propagate with their class intact.
//
// # Usage
//
//	v, err := validator.New(resources, flows, schemas, artifacts,
//	    validator.WithLogger(logger),
//	    validator.WithMetrics(registry))
//	version, err := v.ValidateAndConstruct(ctx,
//	    resource.NoID(), resource.SomeID(flowID), candidate, files)
//
// WithStages replaces the stage list, which is mostly useful in tests.
package validator
