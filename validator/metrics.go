package validator

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/metric"
)

// pipelineMetrics holds Prometheus metrics for validation runs.
type pipelineMetrics struct {
	validations *prometheus.CounterVec   // By status (valid, incomplete, rejected, error)
	rejections  *prometheus.CounterVec   // By stage and kind
	duration    *prometheus.HistogramVec // By status
}

// newPipelineMetrics creates and registers pipeline metrics with the provided registry.
func newPipelineMetrics(registry *metric.MetricsRegistry) (*pipelineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &pipelineMetrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "pipeline",
			Name:      "validations_total",
			Help:      "Total number of flow version validations by outcome",
		}, []string{"status"}),

		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_rejections_total",
			Help:      "Total number of versions rejected by a stage",
		}, []string{"stage", "kind"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "pipeline",
			Name:      "validate_duration_seconds",
			Help:      "Flow version validation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"status"}),
	}

	if err := registry.RegisterCounterVec("pipeline", "validations", m.validations); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("pipeline", "stage_rejections", m.rejections); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("pipeline", "validate_duration", m.duration); err != nil {
		return nil, err
	}

	return m, nil
}

// Outcome labels
const (
	statusValid      = "valid"
	statusIncomplete = "incomplete"
	statusRejected   = "rejected"
	statusError      = "error"
)

// recordValidation records the outcome of one run.
func (m *pipelineMetrics) recordValidation(status string, seconds float64) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(seconds)
}

// recordRejection records a stage failure. Errors that are not validation
// errors are labelled with their class.
func (m *pipelineMetrics) recordRejection(stage string, err error) {
	if m == nil {
		return
	}
	kind := errors.Classify(err).String()
	var ve *errors.ValidationError
	if stderrors.As(err, &ve) {
		kind = string(ve.Kind)
	}
	m.rejections.WithLabelValues(stage, kind).Inc()
}
