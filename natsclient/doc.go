// Package natsclient wraps a NATS connection with the JetStream key-value and
// object store helpers used by the flow, resource and artifact stores.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("flowvalidator"),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// # Key-Value Stores
//
// CreateKeyValueBucket returns an existing bucket or creates it, tolerating a
// concurrent creator. KVStore adds revision-aware helpers on top:
//
//	bucket, _ := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "flows"})
//	kv := client.NewKVStore(bucket)
//
//	entry, err := kv.Get(ctx, "flow-1")
//	if natsclient.IsKVNotFoundError(err) {
//	    // absent
//	}
//	_, err = kv.Update(ctx, "flow-1", data, entry.Revision)
//	if natsclient.IsKVConflictError(err) {
//	    // another writer got there first
//	}
//
// # Object Stores
//
// CreateObjectStore follows the same get-or-create rule for JetStream object
// store buckets, which hold uploaded code artifacts.
//
// # Testing
//
// NewTestClient starts a NATS server in a container through testcontainers-go:
//
//	tc := natsclient.NewTestClient(t, natsclient.WithKV())
//	kv := tc.KVStore(t, "flows")
package natsclient
