// Package retry retries operations that fail with transient errors.
//
// Only errors classified transient by the errors package are retried.
// Invalid, fatal, not found and permission errors return at once, since
// another attempt would fail the same way. The flow validator uses it at
// startup while NATS and its buckets become available:
//
//	err := retry.Do(ctx, retry.Startup(), func() error {
//		return client.Connect(ctx)
//	})
//
// The validation pipeline itself never retries. Its callers decide.
package retry
