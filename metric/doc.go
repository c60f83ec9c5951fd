// Package metric provides the Prometheus metrics registry shared by the
// flow validator packages and a small HTTP server exposing it.
//
// NewMetricsRegistry registers the process-level metrics (HTTP traffic and
// NATS connection state) and the Go runtime collectors. Packages register
// their own collectors through the MetricsRegistrar methods:
//
//	registry := metric.NewMetricsRegistry()
//	v := validator.New(resolver, flows, schemas, artifacts,
//	    validator.WithMetrics(registry))
//
// Registering the same service/metric pair twice returns an Invalid error.
// Packages accept a nil registry and skip metrics in that case.
//
// The registry is served either on a dedicated port with Server or mounted
// on an existing mux with Handler.
package metric
