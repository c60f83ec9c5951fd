package health

import (
	"regexp"
	"strings"
	"time"
)

// State is the health level of a component
type State string

// Health states, ordered from best to worst
const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one component, or of the service when it
// carries sub-statuses.
type Status struct {
	Component   string    `json:"component"`
	State       State     `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewStatus creates a status stamped with the current time
func NewStatus(component string, state State, message string) Status {
	return Status{
		Component: component,
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromError reports err as unhealthy, or healthy when err is nil. The
// error text is sanitized before it is exposed.
func FromError(component string, err error) Status {
	if err == nil {
		return NewStatus(component, StateHealthy, "ok")
	}
	return NewStatus(component, StateUnhealthy, sanitizeErrorMessage(err.Error()))
}

// Healthy reports whether the state is healthy
func (s Status) Healthy() bool {
	return s.State == StateHealthy
}

// Serving reports whether the component can still take requests
func (s Status) Serving() bool {
	return s.State == StateHealthy || s.State == StateDegraded
}

// Aggregate combines sub-statuses: any unhealthy makes the whole unhealthy,
// otherwise any degraded makes it degraded.
func Aggregate(component string, subs []Status) Status {
	state := StateHealthy
	message := "all components healthy"
	for _, sub := range subs {
		switch {
		case sub.State == StateUnhealthy:
			state = StateUnhealthy
			message = "one or more components are unhealthy"
		case sub.State == StateDegraded && state == StateHealthy:
			state = StateDegraded
			message = "one or more components are degraded"
		}
	}

	status := NewStatus(component, state, message)
	status.SubStatuses = append([]Status(nil), subs...)
	return status
}

// sanitizeErrorMessage strips URLs, paths, addresses and credentials from
// error text shown on the health endpoint.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := urlRegex.ReplaceAllString(msg, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") || strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
