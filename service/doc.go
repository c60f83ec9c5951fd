// Package service exposes flow version validation over HTTP.
//
// FlowVersionHandler serves two routes under APIPrefix:
//
//	POST /api/v1/flows/{flowID}/versions/validate
//	POST /api/v1/collections/{collectionID}/flows/validate
//
// The first validates a new version of an existing flow, deriving the
// collection from the flow and carrying code artifacts over from its last
// saved version. With ?save=true the validated version is also saved. The
// second validates the first version of a flow that does not exist yet.
//
// Both accept either an application/json body holding the version, or a
// multipart/form-data body with a "version" field and one "artifact" file
// part per uploaded code file. The part's file name is the artifact key
// steps refer to.
//
// Errors map to status codes by class:
//
//	ValidationError, invalid     422
//	not found                    404
//	permission denied            403
//	transient                    503
//	internal, fatal              500
//	malformed request            400
//
// Responses for 5xx errors never include the underlying cause.
// The caller principal is read from the X-Principal header, which the
// upstream gateway is trusted to set.
package service
