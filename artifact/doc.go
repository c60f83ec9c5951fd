// Package artifact stores the code files uploaded with a flow version.
//
// A File is what the caller uploads; a Ref is what a code step carries
// after validation (settings artifact_url and artifact_hash). Store is the
// Resolver backed by a NATS JetStream object store:
//
//	store, err := artifact.OpenStore(ctx, client, "artifacts")
//	ref, err := store.Resolve(ctx, projectID, collectionID, artifact.File{
//	    Key:  "script.js",
//	    Data: source,
//	})
//	// ref.URL == "objectstore://artifacts/projects/<p>/collections/<c>/<sha256>/script.js"
//
// Objects are content addressed: the SHA-256 of the data is part of the
// object name, so re-uploading an unchanged file is a metadata lookup only.
// Open reads an object back and rejects it when the digest no longer
// matches.
package artifact
