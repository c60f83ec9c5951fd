// Package flowstore persists flows and their versions in NATS KV.
//
// A Flow lives in a collection and points at its latest FlowVersion. Every
// saved version is also kept in a second bucket under "<flowID>.<versionID>",
// so older versions stay readable after the flow moves on.
//
// # Versions
//
// A version is a list of steps. The first step is the trigger; each later
// step is an action, a code step, a branch or a loop. Step names must be
// unique within a version, which the validator enforces before a version
// reaches this package.
//
// Versions are either DRAFT or LOCKED. SaveVersion with the ID of the
// current draft replaces it in place and keeps its creation time. A locked
// version is never replaced:
//
//	flow, err := store.SaveVersion(ctx, flowID, version)
//	if errors.IsInvalid(err) {
//		// locked, or structurally broken
//	}
//
// # Optimistic Concurrency
//
// Flow.Version increments on every write. Update fails with an invalid
// "conflict" error when the stored version differs from the caller's copy.
// SaveVersion reloads the flow itself, so it only conflicts when two saves
// race on the same KV revision.
//
// # Visibility
//
// WithVisibility makes Get ask the resource store whether the caller in ctx
// may see the flow. A caller outside the owning project gets a permission
// error before the flow is read.
//
// # Error Classification
//
//   - WrapInvalid: nil or malformed input, duplicate IDs, version conflicts
//   - WrapNotFound: missing flow or version
//   - WrapTransient: KV errors
//   - WrapFatal: marshaling errors
package flowstore
