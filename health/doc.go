// Package health reports whether the flow validator service can serve
// requests.
//
// A Monitor holds one Probe per dependency (the NATS connection, the
// component registry). Check runs them with a short timeout each and
// aggregates the results:
//   - any unhealthy probe makes the service unhealthy
//   - otherwise any degraded probe makes it degraded
//   - otherwise it is healthy
//
// Handler exposes the aggregate as JSON and answers 503 when the service
// is unhealthy. Error text from probes is sanitized with FromError so that
// addresses, paths and credentials do not leak through the endpoint.
//
//	monitor := health.NewMonitor("flowvalidator", logger)
//	monitor.Register("nats", func(ctx context.Context) health.Status {
//		return health.FromError("nats", client.WaitForConnection(ctx))
//	})
//	mux.Handle("GET /healthz", monitor.Handler())
package health
