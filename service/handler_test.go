package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/devops-bizzibees/activepieces/artifact"
	"github.com/devops-bizzibees/activepieces/errors"
	"github.com/devops-bizzibees/activepieces/flowstore"
	"github.com/devops-bizzibees/activepieces/health"
	"github.com/devops-bizzibees/activepieces/metric"
	"github.com/devops-bizzibees/activepieces/resource"
	"github.com/devops-bizzibees/activepieces/testutil"
)

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateAndConstruct(
	ctx context.Context,
	collectionID, flowID resource.OptionalID,
	candidate *flowstore.FlowVersion,
	files []artifact.File,
) (*flowstore.FlowVersion, error) {
	args := m.Called(ctx, collectionID, flowID, candidate, files)
	v, _ := args.Get(0).(*flowstore.FlowVersion)
	return v, args.Error(1)
}

type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) SaveVersion(ctx context.Context, flowID resource.ID, version *flowstore.FlowVersion) (*flowstore.Flow, error) {
	args := m.Called(ctx, flowID, version)
	f, _ := args.Get(0).(*flowstore.Flow)
	return f, args.Error(1)
}

type HandlerSuite struct {
	suite.Suite
	validator *MockValidator
	saver     *MockSaver
	registry  *metric.MetricsRegistry
	mux       *http.ServeMux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.validator = new(MockValidator)
	s.saver = new(MockSaver)
	s.registry = metric.NewMetricsRegistry()

	h, err := NewFlowVersionHandler(s.validator,
		WithVersionSaver(s.saver),
		WithHTTPMetrics(s.registry.CoreMetrics()))
	s.Require().NoError(err)

	s.mux = http.NewServeMux()
	h.RegisterHTTPHandlers(APIPrefix, s.mux)
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(target string, v any) *http.Request {
	body, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(target string, version []byte, files ...artifact.File) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField(versionPart, string(version))
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, artifactPart, f.Key))
		h.Set("Content-Type", f.ContentType)
		part, _ := mw.CreatePart(h)
		_, _ = part.Write(f.Data)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *HandlerSuite) versionJSON(v *flowstore.FlowVersion) []byte {
	data, err := testutil.VersionJSON(v)
	s.Require().NoError(err)
	return data
}

func decode[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *HandlerSuite) TestFlowRoute_JSON() {
	candidate := testutil.ValidVersion()
	validated := candidate.Clone()
	validated.Valid = true

	s.validator.On("ValidateAndConstruct", mock.Anything,
		resource.NoID(), resource.SomeID("flow-1"),
		mock.MatchedBy(func(v *flowstore.FlowVersion) bool { return v.DisplayName == candidate.DisplayName }),
		[]artifact.File(nil)).
		Return(validated, nil)

	req := jsonRequest("/api/v1/flows/flow-1/versions/validate", candidate)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := s.serve(req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("req-42", rec.Header().Get(RequestIDHeader))
	resp := decode[ValidateResponse](s, rec)
	s.True(resp.Valid)
	s.Equal("req-42", resp.RequestID)
	s.Nil(resp.Flow)
	s.validator.AssertExpectations(s.T())

	s.Equal(1.0, promtest.ToFloat64(s.registry.CoreMetrics().HTTPRequests.WithLabelValues(routeFlowVersion, "200")))
}

func (s *HandlerSuite) TestCollectionRoute_Multipart() {
	script := testutil.ScriptFile()
	version := s.versionJSON(testutil.ValidVersion())

	s.validator.On("ValidateAndConstruct", mock.Anything,
		resource.SomeID("col-1"), resource.NoID(),
		mock.Anything,
		mock.MatchedBy(func(files []artifact.File) bool {
			return len(files) == 1 && files[0].Key == script.Key &&
				bytes.Equal(files[0].Data, script.Data) && files[0].ContentType == script.ContentType
		})).
		Return(testutil.ValidVersion(), nil)

	rec := s.serve(multipartRequest("/api/v1/collections/col-1/flows/validate", version, script))

	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.NotEmpty(rec.Header().Get(RequestIDHeader), "request id is generated")
	s.validator.AssertExpectations(s.T())
}

func (s *HandlerSuite) TestPrincipalHeader() {
	s.validator.On("ValidateAndConstruct",
		mock.MatchedBy(func(ctx context.Context) bool {
			p, ok := resource.PrincipalFrom(ctx)
			return ok && p == "user-7"
		}),
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(testutil.ValidVersion(), nil)

	req := jsonRequest("/api/v1/flows/f/versions/validate", testutil.ValidVersion())
	req.Header.Set(PrincipalHeader, "user-7")
	s.Equal(http.StatusOK, s.serve(req).Code)
	s.validator.AssertExpectations(s.T())
}

func (s *HandlerSuite) TestSave() {
	validated := testutil.ValidVersion()
	validated.Valid = true
	saved := &flowstore.Flow{ID: "flow-1", Version: 3, LastVersion: validated}

	s.validator.On("ValidateAndConstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(validated, nil)
	s.saver.On("SaveVersion", mock.Anything, resource.ID("flow-1"), validated).Return(saved, nil)

	rec := s.serve(jsonRequest("/api/v1/flows/flow-1/versions/validate?save=true", testutil.ValidVersion()))

	s.Equal(http.StatusOK, rec.Code)
	resp := decode[ValidateResponse](s, rec)
	s.Require().NotNil(resp.Flow)
	s.Equal(int64(3), resp.Flow.Version)
	s.saver.AssertExpectations(s.T())
}

func (s *HandlerSuite) TestSave_NotOnRejection() {
	ve := errors.NewValidationError("unique_step_names", errors.KindDuplicateName, "A", 2, "name", "duplicate step name")
	s.validator.On("ValidateAndConstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, ve)

	rec := s.serve(jsonRequest("/api/v1/flows/flow-1/versions/validate?save=1", testutil.DuplicateNamesVersion()))

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.saver.AssertNotCalled(s.T(), "SaveVersion", mock.Anything, mock.Anything, mock.Anything)

	resp := decode[ErrorResponse](s, rec)
	s.Require().NotNil(resp.Validation)
	s.Equal(errors.KindDuplicateName, resp.Validation.Kind)
	s.Equal(2, resp.Validation.Index)
	s.Equal("invalid", resp.Class)
}

func (s *HandlerSuite) TestErrorMapping() {
	tests := []struct {
		name    string
		err     error
		code    int
		leaks   string
		message string
	}{
		{
			name: "not found",
			err:  errors.WrapNotFound(fmt.Errorf("flow f missing"), "resource", "Get", "load"),
			code: http.StatusNotFound,
		},
		{
			name: "permission denied",
			err:  errors.WrapPermissionDenied(fmt.Errorf("no access"), "resource", "Get", "check"),
			code: http.StatusForbidden,
		},
		{
			name: "invalid",
			err:  errors.WrapInvalid(fmt.Errorf("candidate version is nil"), "validator", "V", "check"),
			code: http.StatusUnprocessableEntity,
		},
		{
			name:    "transient",
			err:     errors.WrapTransient(fmt.Errorf("kv timeout at nats://10.0.0.1"), "flowstore", "Get", "read"),
			code:    http.StatusServiceUnavailable,
			leaks:   "10.0.0.1",
			message: http.StatusText(http.StatusServiceUnavailable),
		},
		{
			name:  "internal",
			err:   &errors.InternalError{IncidentID: "abc"},
			code:  http.StatusInternalServerError,
			leaks: "root cause",
		},
		{
			name:    "fatal",
			err:     errors.WrapFatal(fmt.Errorf("stage returned no version"), "validator", "V", "run"),
			code:    http.StatusInternalServerError,
			leaks:   "stage returned",
			message: http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			v := new(MockValidator)
			v.On("ValidateAndConstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tt.err)
			h, err := NewFlowVersionHandler(v)
			s.Require().NoError(err)
			mux := http.NewServeMux()
			h.RegisterHTTPHandlers(APIPrefix, mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, jsonRequest("/api/v1/collections/c/flows/validate", testutil.ValidVersion()))

			s.Equal(tt.code, rec.Code)
			resp := decode[ErrorResponse](s, rec)
			if tt.leaks != "" {
				s.NotContains(resp.Error, tt.leaks)
			}
			if tt.message != "" {
				s.Equal(tt.message, resp.Error)
			}
		})
	}
}

func (s *HandlerSuite) TestBadRequests() {
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"malformed json", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flows/f/versions/validate", bytes.NewBufferString("{"))
			req.Header.Set("Content-Type", "application/json")
			return req
		}},
		{"no content type", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/v1/flows/f/versions/validate", bytes.NewBufferString("{}"))
		}},
		{"text body", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flows/f/versions/validate", bytes.NewBufferString("hi"))
			req.Header.Set("Content-Type", "text/plain")
			return req
		}},
		{"multipart without version", func() *http.Request {
			return multipartRequest("/api/v1/flows/f/versions/validate", nil, testutil.ScriptFile())
		}},
		{"multipart with bad version", func() *http.Request {
			return multipartRequest("/api/v1/flows/f/versions/validate", []byte("{nope"))
		}},
		{"bad save flag", func() *http.Request {
			return jsonRequest("/api/v1/flows/f/versions/validate?save=maybe", testutil.ValidVersion())
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.serve(tt.req())
			s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	s.validator.AssertNotCalled(s.T(), "ValidateAndConstruct",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *HandlerSuite) TestSaveDisabled() {
	h, err := NewFlowVersionHandler(s.validator)
	s.Require().NoError(err)
	mux := http.NewServeMux()
	h.RegisterHTTPHandlers(APIPrefix, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, jsonRequest("/api/v1/flows/f/versions/validate?save=true", testutil.ValidVersion()))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestUploadLimit() {
	h, err := NewFlowVersionHandler(s.validator, WithMaxUploadBytes(64))
	s.Require().NoError(err)
	mux := http.NewServeMux()
	h.RegisterHTTPHandlers(APIPrefix, mux)

	big := artifact.File{Key: "big.js", ContentType: "text/javascript", Data: bytes.Repeat([]byte("x"), 1024)}
	largeJSON := s.versionJSON(testutil.ValidVersion())
	s.Require().Greater(len(largeJSON), 64)

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"multipart", func() *http.Request {
			return multipartRequest("/api/v1/flows/f/versions/validate", s.versionJSON(testutil.ValidVersion()), big)
		}},
		{"json", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flows/f/versions/validate", bytes.NewReader(largeJSON))
			req.Header.Set("Content-Type", "application/json")
			return req
		}},
		{"json without content length", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/flows/f/versions/validate", bytes.NewReader(largeJSON))
			req.Header.Set("Content-Type", "application/json")
			req.ContentLength = -1
			return req
		}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, tt.req())
			s.Equal(http.StatusRequestEntityTooLarge, rec.Code)

			var body ErrorResponse
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
			s.Contains(body.Error, "exceeds 64 bytes")
		})
	}
	s.validator.AssertNotCalled(s.T(), "ValidateAndConstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNewFlowVersionHandler_RequiresValidator(t *testing.T) {
	_, err := NewFlowVersionHandler(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStatusCode(t *testing.T) {
	wrapped := errors.Wrap(errors.NewValidationError("steps", errors.KindSchemaViolation, "s", 0, "url", "bad"),
		"validator", "ValidateAndConstruct", "run stage")
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(fmt.Errorf("unclassified")))
}

func TestServer_Routes(t *testing.T) {
	v := new(MockValidator)
	v.On("ValidateAndConstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(testutil.ValidVersion(), nil)
	h, err := NewFlowVersionHandler(v)
	require.NoError(t, err)

	monitor := health.NewMonitor("flowvalidator", nil)
	monitor.Register("nats", func(context.Context) health.Status {
		return health.FromError("nats", nil)
	})
	registry := metric.NewMetricsRegistry()

	srv, err := NewServer(ServerConfig{Port: 8080, MetricsPath: "/metrics"}, h, monitor, registry, nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		method, target string
		code           int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/flows/f/versions/validate", http.StatusMethodNotAllowed},
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		assert.Equal(t, tc.code, rec.Code, tc.target)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, jsonRequest("/api/v1/flows/f/versions/validate", testutil.ValidVersion()))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, srv.Stop(context.Background()), "stopping a server that never started is a no-op")
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(ServerConfig{Port: 8080}, nil, nil, nil, nil)
	assert.True(t, errors.IsInvalid(err))

	h, err := NewFlowVersionHandler(new(MockValidator))
	require.NoError(t, err)
	_, err = NewServer(ServerConfig{Port: 0}, h, nil, nil, nil)
	assert.True(t, errors.IsInvalid(err))
}
