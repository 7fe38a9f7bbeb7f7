package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/render-api/internal/config"
	"github.com/deppfellow/render-api/internal/errs"
	"github.com/deppfellow/render-api/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(buf *bytes.Buffer) *server.Server {
	logger := zerolog.New(buf)
	obs := config.DefaultObservabilityConfig()
	obs.Logging.SlowRequestThreshold = time.Hour
	return &server.Server{
		Config: &config.Config{
			Primary:       config.Primary{Env: "test"},
			Server:        config.ServerConfig{BodyLimit: "1K"},
			Observability: obs,
		},
		Logger: &logger,
	}
}

func TestGlobalErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, `{"error":"Route not found"}`},
		{"echo 405", echo.ErrMethodNotAllowed, http.StatusNotFound, `{"error":"Route not found"}`},
		{"echo 413", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge, `{"error":"Request Entity Too Large"}`},
		{"echo 401", echo.ErrUnauthorized, http.StatusInternalServerError, `{"error":"Internal server error"}`},
		{"http error", errs.NewInvalidJSONError(), http.StatusBadRequest, `{"error":"Invalid JSON"}`},
		{"unknown error", assert.AnError, http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			global := NewGlobalMiddlewares(newTestServer(&buf))

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

			global.GlobalErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
			assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
		})
	}
}

func TestGlobalErrorHandlerSkipsCommittedResponse(t *testing.T) {
	var buf bytes.Buffer
	global := NewGlobalMiddlewares(newTestServer(&buf))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
	require.NoError(t, c.String(http.StatusOK, "done"))

	global.GlobalErrorHandler(assert.AnError, c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	handler := RequestID()(func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestID(c))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.Len(t, rec.Body.String(), 36)
}

func TestEnhanceContextStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	ce := NewContextEnhancer(newTestServer(&buf))

	e := echo.New()
	handler := RequestID()(ce.EnhanceContext()(func(c echo.Context) error {
		GetLogger(c).Info().Msg("from handler")
		zerolog.Ctx(c.Request().Context()).Info().Msg("from service")
		return nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/latex-html", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	require.NoError(t, handler(e.NewContext(req, httptest.NewRecorder())))

	dec := json.NewDecoder(&buf)
	for _, msg := range []string{"from handler", "from service"} {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		assert.Equal(t, msg, line["message"])
		assert.Equal(t, "req-1", line["request_id"])
		assert.Equal(t, "/api/v1/latex-html", line["path"])
		assert.Equal(t, http.MethodPost, line["method"])
	}
}

func TestGetLoggerWithoutEnhancer(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.NotNil(t, GetLogger(c))
}

func TestRequestLoggerUsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	global := NewGlobalMiddlewares(newTestServer(&buf))

	e := echo.New()
	handler := global.RequestLogger()(func(c echo.Context) error {
		return echo.ErrMethodNotAllowed
	})

	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/nope", nil), httptest.NewRecorder())
	c.Set(LoggerKey, global.server.Logger)
	_ = handler(c)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "API", line["message"])
	assert.Equal(t, float64(http.StatusNotFound), line["status"])
	assert.Equal(t, "warn", line["level"])
}

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	e := echo.New()
	handler := RequestID()(func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestID(c))
	})

	for _, id := range []string{"has space", "tab\there", strings.Repeat("a", 129), "ünïcode"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, id)
		require.NoError(t, handler(e.NewContext(req, rec)))

		assert.NotEqual(t, id, rec.Body.String())
		_, err := uuid.Parse(rec.Body.String())
		assert.NoError(t, err, "id %q should be replaced by a UUID", id)
	}
}

func latexOnly(method, path string) bool {
	return method == http.MethodPost && path == "/api/v1/latex-html"
}

func TestCORSOnlyAnswersPreflightsForRoutes(t *testing.T) {
	var buf bytes.Buffer
	global := NewGlobalMiddlewares(newTestServer(&buf))
	next := func(c echo.Context) error {
		return c.String(http.StatusTeapot, "next")
	}
	mw := global.CORS(latexOnly)(next)

	tests := []struct {
		name       string
		method     string
		target     string
		preflight  string
		wantStatus int
	}{
		{"preflight for route", http.MethodOptions, "/api/v1/latex-html", http.MethodPost, http.StatusNoContent},
		{"preflight for other method", http.MethodOptions, "/api/v1/latex-html", http.MethodGet, http.StatusTeapot},
		{"preflight outside prefix", http.MethodOptions, "/outside", http.MethodPost, http.StatusTeapot},
		{"options without preflight", http.MethodOptions, "/api/v1/latex-html", "", http.StatusTeapot},
		{"plain request", http.MethodPost, "/api/v1/latex-html", "", http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set(echo.HeaderOrigin, "https://example.com")
			if tt.preflight != "" {
				req.Header.Set(echo.HeaderAccessControlRequestMethod, tt.preflight)
			}
			rec := httptest.NewRecorder()

			require.NoError(t, mw(echo.New().NewContext(req, rec)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSHeadersOnPlainRequests(t *testing.T) {
	var buf bytes.Buffer
	global := NewGlobalMiddlewares(newTestServer(&buf))
	mw := global.CORS(latexOnly)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/latex-html", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.com")
	rec := httptest.NewRecorder()

	require.NoError(t, mw(echo.New().NewContext(req, rec)))
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestBodyLimitOnlyForRoutes(t *testing.T) {
	var buf bytes.Buffer
	global := NewGlobalMiddlewares(newTestServer(&buf))
	mw := global.BodyLimit(latexOnly)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	body := strings.Repeat("x", 4096)

	rec := httptest.NewRecorder()
	err := mw(echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/latex-html", strings.NewReader(body)), rec))
	assert.Equal(t, http.StatusRequestEntityTooLarge, errorStatus(err))

	rec = httptest.NewRecorder()
	err = mw(echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/unknown", strings.NewReader(body)), rec))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
