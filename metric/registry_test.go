package metric

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devops-bizzibees/activepieces/errors"
)

func newCounterVec(name string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "A test counter",
	}, []string{"status"})
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.Same(t, registry.Metrics, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterVecs(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := newCounterVec("test_counter_total")
	require.NoError(t, registry.RegisterCounterVec("validator", "counter", counter))

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_gauge", Help: "g"}, []string{"bucket"})
	require.NoError(t, registry.RegisterGaugeVec("validator", "gauge", gauge))

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_seconds", Help: "h"}, []string{"stage"})
	require.NoError(t, registry.RegisterHistogramVec("validator", "histogram", histogram))

	counter.WithLabelValues("ok").Inc()
	gauge.WithLabelValues("flows").Set(3)
	histogram.WithLabelValues("steps").Observe(0.2)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_counter_total"])
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_seconds"])
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("ok")))
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounterVec("validator", "runs", newCounterVec("runs_total")))

	// Same key
	err := registry.RegisterCounterVec("validator", "runs", newCounterVec("other_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "already registered")

	// Different key, same prometheus name
	err = registry.RegisterCounterVec("service", "runs", newCounterVec("runs_total"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounterVec("validator", "runs", newCounterVec("runs_total")))
	assert.True(t, registry.Unregister("validator", "runs"))
	assert.False(t, registry.Unregister("validator", "runs"))

	// Name is free again
	require.NoError(t, registry.RegisterCounterVec("validator", "runs", newCounterVec("runs_total")))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_%d_total", id)
			assert.NoError(t, registry.RegisterCounterVec("svc", name, newCounterVec(name)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.True(t, registry.Unregister("svc", fmt.Sprintf("concurrent_%d_total", i)))
	}
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordHTTPRequest("validate_version", 422, 15*time.Millisecond)
	core.RecordHTTPRequest("validate_version", 422, 5*time.Millisecond)
	core.RecordNATSStatus(true)
	core.RecordNATSReconnect()

	assert.Equal(t, 2.0, testutil.ToFloat64(core.HTTPRequests.WithLabelValues("validate_version", "422")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSConnected))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.NATSReconnects))

	core.RecordNATSStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(core.NATSConnected))
}

func TestHandler_ServesRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordNATSStatus(true)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "flowvalidator_nats_connected 1"))
}

func TestServer_StartValidation(t *testing.T) {
	server := NewServer(0, "", nil)
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())

	err := server.Start()
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	assert.NoError(t, server.Stop(context.Background()), "stopping an idle server is a no-op")
}
