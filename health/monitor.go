package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Probe checks one dependency of the service
type Probe func(ctx context.Context) Status

// Monitor runs registered probes and aggregates their results. It is safe
// for concurrent use.
type Monitor struct {
	name    string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewMonitor creates a monitor reporting under the given service name
func NewMonitor(name string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		name:    name,
		timeout: 2 * time.Second,
		logger:  logger,
		probes:  make(map[string]Probe),
	}
}

// Register adds or replaces the probe for a component
func (m *Monitor) Register(component string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[component] = probe
}

// Remove stops probing a component
func (m *Monitor) Remove(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.probes, component)
}

// Components returns the probed component names, sorted
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every probe with a per-probe timeout and aggregates them
func (m *Monitor) Check(ctx context.Context) Status {
	m.mu.RLock()
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	m.mu.RUnlock()

	subs := make([]Status, 0, len(probes))
	for _, name := range m.Components() {
		probe, ok := probes[name]
		if !ok {
			continue
		}
		status := m.run(ctx, name, probe)
		status.Component = name
		if status.Timestamp.IsZero() {
			status.Timestamp = time.Now()
		}
		subs = append(subs, status)
	}
	return Aggregate(m.name, subs)
}

// run calls probe in its own goroutine so a probe that ignores its context
// is reported unhealthy once the timeout passes instead of blocking Check.
// The abandoned goroutine finishes on its own.
func (m *Monitor) run(ctx context.Context, name string, probe Probe) Status {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan Status, 1)
	go func() {
		done <- probe(pctx)
	}()

	select {
	case status := <-done:
		return status
	case <-pctx.Done():
		m.logger.Warn("Health probe did not answer in time", "component", name, "timeout", m.timeout)
		return FromError(name, pctx.Err())
	}
}

// Handler serves the aggregated status as JSON. Unhealthy services answer
// 503 so load balancers stop routing to them.
func (m *Monitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := m.Check(r.Context())

		code := http.StatusOK
		if !status.Serving() {
			code = http.StatusServiceUnavailable
			m.logger.Warn("Health check failed", "status", status.State, "message", status.Message)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			m.logger.Error("Failed to encode health status", "error", err)
		}
	})
}
