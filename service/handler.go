package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/resource"
)

const (
	// PrincipalHeader carries the caller identity set by the upstream gateway
	PrincipalHeader = "X-Principal"
	// RequestIDHeader correlates a request with its logs
	RequestIDHeader = "X-Request-ID"

	// DefaultMaxUploadBytes bounds a multipart request
	DefaultMaxUploadBytes = 32 << 20

	versionPart  = "version"
	artifactPart = "artifact"

	routeFlowVersion    = "flow_version"
	routeCollectionFlow = "collection_flow"
)

// Validator validates a candidate version and returns the version to save
type Validator interface {
	ValidateAndConstruct(
		ctx context.Context,
		collectionID resource.OptionalID,
		flowID resource.OptionalID,
		candidate *flowstore.FlowVersion,
		files []artifact.File,
	) (*flowstore.FlowVersion, error)
}

// VersionSaver persists a validated version as the flow's latest
type VersionSaver interface {
	SaveVersion(ctx context.Context, flowID resource.ID, version *flowstore.FlowVersion) (*flowstore.Flow, error)
}

// ValidateResponse is the body of a successful validation
type ValidateResponse struct {
	RequestID string                 `json:"request_id"`
	Valid     bool                   `json:"valid"`
	Version   *flowstore.FlowVersion `json:"version"`
	Flow      *flowstore.Flow        `json:"flow,omitempty"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	RequestID  string                  `json:"request_id"`
	Error      string                  `json:"error"`
	Class      string                  `json:"class,omitempty"`
	Validation *errors.ValidationError `json:"validation,omitempty"`
}

// FlowVersionHandler exposes the validation pipeline over HTTP
type FlowVersionHandler struct {
	validator Validator
	saver     VersionSaver
	metrics   *metric.Metrics
	logger    *slog.Logger
	maxUpload int64
}

// HandlerOption configures a FlowVersionHandler
type HandlerOption func(*FlowVersionHandler)

// WithVersionSaver enables ?save=true on the flow route
func WithVersionSaver(saver VersionSaver) HandlerOption {
	return func(h *FlowVersionHandler) {
		h.saver = saver
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *FlowVersionHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHTTPMetrics records request counts and durations
func WithHTTPMetrics(metrics *metric.Metrics) HandlerOption {
	return func(h *FlowVersionHandler) {
		h.metrics = metrics
	}
}

// WithMaxUploadBytes bounds the request body size
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *FlowVersionHandler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewFlowVersionHandler creates a handler over the validator
func NewFlowVersionHandler(validator Validator, opts ...HandlerOption) (*FlowVersionHandler, error) {
	if validator == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("validator is nil"),
			"FlowVersionHandler", "New", "check validator")
	}

	h := &FlowVersionHandler{
		validator: validator,
		logger:    slog.Default(),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// RegisterHTTPHandlers mounts the validation routes under prefix, which
// must end with a slash (for example "/api/v1/").
func (h *FlowVersionHandler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.Handle("POST "+prefix+"flows/{flowID}/versions/validate",
		h.instrument(routeFlowVersion, h.handleValidateFlowVersion))
	mux.Handle("POST "+prefix+"collections/{collectionID}/flows/validate",
		h.instrument(routeCollectionFlow, h.handleValidateNewFlow))
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument assigns a request id, attaches the caller principal and
// records HTTP metrics
func (h *FlowVersionHandler) instrument(route string, next func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := r.Context()
		if p := r.Header.Get(PrincipalHeader); p != "" {
			ctx = resource.WithPrincipal(ctx, resource.Principal(p))
		}

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r.WithContext(ctx), requestID)

		if h.metrics != nil {
			h.metrics.RecordHTTPRequest(route, rec.code, time.Since(start))
		}
	})
}

// handleValidateFlowVersion validates a new version of an existing flow.
// The collection is derived from the flow. With ?save=true the result is
// saved as the flow's latest version.
func (h *FlowVersionHandler) handleValidateFlowVersion(w http.ResponseWriter, r *http.Request, requestID string) {
	flowID := resource.ID(r.PathValue("flowID"))

	save := false
	if raw := r.URL.Query().Get("save"); raw != "" {
		var err error
		if save, err = strconv.ParseBool(raw); err != nil {
			h.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("invalid save parameter %q", raw))
			return
		}
	}
	if save && h.saver == nil {
		h.writeError(w, requestID, http.StatusBadRequest, "saving is not enabled")
		return
	}

	candidate, files, ok := h.decodeRequest(w, r, requestID)
	if !ok {
		return
	}

	validated, err := h.validator.ValidateAndConstruct(r.Context(), resource.NoID(), resource.SomeID(flowID), candidate, files)
	if err != nil {
		h.writeValidateError(w, requestID, err)
		return
	}

	resp := ValidateResponse{RequestID: requestID, Valid: validated.Valid, Version: validated}
	if save {
		flow, err := h.saver.SaveVersion(r.Context(), flowID, validated)
		if err != nil {
			h.writeValidateError(w, requestID, err)
			return
		}
		resp.Flow = flow
		resp.Version = flow.LastVersion
	}

	h.logger.Debug("Validated flow version",
		"request_id", requestID,
		"flow_id", flowID,
		"valid", validated.Valid,
		"saved", save)
	h.writeJSON(w, http.StatusOK, resp)
}

// handleValidateNewFlow validates the first version of a flow that does
// not exist yet
func (h *FlowVersionHandler) handleValidateNewFlow(w http.ResponseWriter, r *http.Request, requestID string) {
	collectionID := resource.ID(r.PathValue("collectionID"))

	candidate, files, ok := h.decodeRequest(w, r, requestID)
	if !ok {
		return
	}

	validated, err := h.validator.ValidateAndConstruct(r.Context(), resource.SomeID(collectionID), resource.NoID(), candidate, files)
	if err != nil {
		h.writeValidateError(w, requestID, err)
		return
	}

	h.logger.Debug("Validated new flow",
		"request_id", requestID,
		"collection_id", collectionID,
		"valid", validated.Valid)
	h.writeJSON(w, http.StatusOK, ValidateResponse{RequestID: requestID, Valid: validated.Valid, Version: validated})
}

// decodeRequest reads the candidate version and uploaded artifacts. It
// writes the error response itself and reports false on failure.
func (h *FlowVersionHandler) decodeRequest(w http.ResponseWriter, r *http.Request, requestID string) (*flowstore.FlowVersion, []artifact.File, bool) {
	if r.ContentLength > h.maxUpload {
		h.writeTooLarge(w, requestID)
		return nil, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		h.writeError(w, requestID, http.StatusBadRequest, "missing or malformed Content-Type")
		return nil, nil, false
	}

	switch mediaType {
	case "application/json":
		var candidate flowstore.FlowVersion
		if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
			if tooLarge(err) {
				h.writeTooLarge(w, requestID)
				return nil, nil, false
			}
			h.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("invalid JSON in request body: %v", err))
			return nil, nil, false
		}
		return &candidate, nil, true

	case "multipart/form-data":
		candidate, files, err := readMultipart(r, h.maxUpload)
		if err != nil {
			if tooLarge(err) {
				h.writeTooLarge(w, requestID)
				return nil, nil, false
			}
			h.writeError(w, requestID, http.StatusBadRequest, err.Error())
			return nil, nil, false
		}
		return candidate, files, true

	default:
		h.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("unsupported Content-Type %q", mediaType))
		return nil, nil, false
	}
}

func (h *FlowVersionHandler) writeTooLarge(w http.ResponseWriter, requestID string) {
	h.writeError(w, requestID, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds %d bytes", h.maxUpload))
}

// tooLarge reports whether err comes from the body size limit
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return stderrors.As(err, &mbe)
}

// readMultipart reads a "version" JSON field and any number of "artifact"
// file parts. The file name of each part is the artifact key.
func readMultipart(r *http.Request, maxMemory int64) (*flowstore.FlowVersion, []artifact.File, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	raw := r.FormValue(versionPart)
	if raw == "" {
		return nil, nil, fmt.Errorf("multipart body has no %q part", versionPart)
	}
	var candidate flowstore.FlowVersion
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON in %q part: %w", versionPart, err)
	}

	headers := r.MultipartForm.File[artifactPart]
	files := make([]artifact.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open artifact %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read artifact %q: %w", fh.Filename, err)
		}
		files = append(files, artifact.File{
			Key:         fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return &candidate, files, nil
}

// StatusCode maps an error returned by the validator to an HTTP status
func StatusCode(err error) int {
	var ve *errors.ValidationError
	if stderrors.As(err, &ve) {
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsPermissionDenied(err):
		return http.StatusForbidden
	case errors.IsInvalid(err):
		return http.StatusUnprocessableEntity
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *FlowVersionHandler) writeValidateError(w http.ResponseWriter, requestID string, err error) {
	code := StatusCode(err)
	resp := ErrorResponse{
		RequestID: requestID,
		Error:     err.Error(),
		Class:     errors.Classify(err).String(),
	}

	var ve *errors.ValidationError
	if stderrors.As(err, &ve) {
		resp.Validation = ve
	}

	switch {
	case errors.IsInternal(err):
		// Opaque by construction, only carries the incident id
	case code >= http.StatusInternalServerError:
		h.logger.Error("Flow version validation failed", "request_id", requestID, "error", err)
		resp.Error = http.StatusText(code)
	default:
		h.logger.Debug("Flow version rejected", "request_id", requestID, "status", code, "error", err)
	}

	h.writeJSON(w, code, resp)
}

func (h *FlowVersionHandler) writeError(w http.ResponseWriter, requestID string, code int, message string) {
	h.writeJSON(w, code, ErrorResponse{RequestID: requestID, Error: message})
}

func (h *FlowVersionHandler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
