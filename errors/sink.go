package errors

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Sink turns a raw collaborator failure into an opaque internal error.
// Implementations record the root cause somewhere operators can find it;
// the returned error must not expose it to callers.
type Sink interface {
	InternalError(err error) error
}

// InternalError is the opaque error returned by a Sink. It only carries an
// incident id that correlates with the logged root cause.
type InternalError struct {
	IncidentID string
}

// Error implements the error interface
func (ie *InternalError) Error() string {
	return fmt.Sprintf("internal error (incident %s)", ie.IncidentID)
}

// Unwrap exposes only the ErrInternal sentinel, never the root cause.
func (ie *InternalError) Unwrap() error {
	return &ClassifiedError{Class: ErrorInternal, Err: ErrInternal, Message: ErrInternal.Error()}
}

// LoggingSink logs the root cause with an incident id at error level.
type LoggingSink struct {
	logger *slog.Logger
}

// NewLoggingSink creates a Sink that logs through logger.
// A nil logger falls back to slog.Default().
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{logger: logger}
}

// InternalError implements Sink
func (s *LoggingSink) InternalError(err error) error {
	incident := uuid.NewString()
	s.logger.Error("Internal error",
		"incident_id", incident,
		"class", Classify(err).String(),
		"error", err)
	return &InternalError{IncidentID: incident}
}
