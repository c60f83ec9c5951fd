package artifact

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/devops-bizzibees/activepieces/metric"
)

// storeMetrics holds Prometheus metrics for artifact store operations.
type storeMetrics struct {
	writes       prometheus.Counter
	dedupHits    prometheus.Counter
	reads        prometheus.Counter
	errors       *prometheus.CounterVec // By operation
	writeLatency prometheus.Observer
	bytesWritten prometheus.Counter
}

// newStoreMetrics creates and registers artifact store metrics. A nil
// registry disables metrics.
func newStoreMetrics(registry *metric.MetricsRegistry, bucket string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"bucket": bucket}

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "artifacts",
		Name:        "operations_total",
		Help:        "Total number of artifact store operations",
		ConstLabels: labels,
	}, []string{"operation"}) // operation: write, dedup, read

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "artifacts",
		Name:        "operation_errors_total",
		Help:        "Total number of artifact store errors",
		ConstLabels: labels,
	}, []string{"operation"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "artifacts",
		Name:        "write_duration_seconds",
		Help:        "Artifact upload duration in seconds",
		ConstLabels: labels,
		Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
	}, []string{})

	written := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "artifacts",
		Name:        "written_bytes_total",
		Help:        "Total artifact bytes uploaded",
		ConstLabels: labels,
	}, []string{})

	prefix := "artifacts_" + bucket
	if err := registry.RegisterCounterVec(prefix, "operations", ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "errors", errs); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "write_latency", latency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "written_bytes", written); err != nil {
		return nil, err
	}

	return &storeMetrics{
		writes:       ops.WithLabelValues("write"),
		dedupHits:    ops.WithLabelValues("dedup"),
		reads:        ops.WithLabelValues("read"),
		errors:       errs,
		writeLatency: latency.WithLabelValues(),
		bytesWritten: written.WithLabelValues(),
	}, nil
}

func (m *storeMetrics) recordWrite(size int, seconds float64) {
	if m != nil {
		m.writes.Inc()
		m.bytesWritten.Add(float64(size))
		m.writeLatency.Observe(seconds)
	}
}

func (m *storeMetrics) recordDedup() {
	if m != nil {
		m.dedupHits.Inc()
	}
}

func (m *storeMetrics) recordRead() {
	if m != nil {
		m.reads.Inc()
	}
}

func (m *storeMetrics) recordError(operation string) {
	if m != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}
