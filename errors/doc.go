// Package errors provides standardized error handling for the flow services.
//
// # Overview
//
// Errors are classified so that callers can decide what to do with them without
// matching on strings:
//
//   - Transient: storage or network hiccups, the caller may retry
//   - Invalid: bad input, including every ValidationError raised by a pipeline stage
//   - Fatal: unrecoverable states such as corrupted data
//   - NotFound: a referenced flow or resource does not exist
//   - PermissionDenied: the caller has no visibility into a resource
//   - Internal: an opaque failure whose root cause was deliberately hidden
//
// The classification works with errors.Is and errors.As and survives wrapping.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format "component.method: action failed: cause":
//
//	if err := store.Get(ctx, id); err != nil {
//	    return errors.WrapNotFound(err, "flowstore", "Get", "lookup flow")
//	}
//
// # Validation Errors
//
// Pipeline stages reject a candidate version with a ValidationError naming the
// stage, the violation kind, the step and the field:
//
//	return errors.NewValidationError("unique_step_names", errors.KindDuplicateName,
//	    "send_email", 3, "name", "step name is used more than once")
//
// # Internal Errors
//
// A Sink converts collaborator failures into an InternalError. The default
// LoggingSink logs the root cause with an incident id and returns an error that
// only exposes that id, so the original class is not observable by the caller:
//
//	sink := errors.NewLoggingSink(logger)
//	return sink.InternalError(err) // errors.IsNotFound(result) == false
package errors
