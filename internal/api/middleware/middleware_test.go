package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
)

func newHTTPMetrics(t *testing.T) (*metrics.HTTPMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewHTTPMetrics(reg)
	require.NoError(t, err)
	return m, reg
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	m, reg := newHTTPMetrics(t)

	e := echo.New()
	e.Use(NewMetrics(m, nil))
	e.GET("/items/:id", func(c echo.Context) error {
		assert.InDelta(t, 1, m.GetInFlight(), 0)
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/fail", func(c echo.Context) error {
		c.Set(ErrorTypeKey, "validation")
		return c.String(http.StatusBadRequest, "bad")
	})

	for _, path := range []string{"/items/1", "/items/2"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fail", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere/123", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var paths []string
	for _, mf := range mfs {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "path" {
					paths = append(paths, lp.GetValue())
				}
			}
		}
	}
	assert.Len(t, paths, 3)
	assert.Contains(t, paths, "/items/:id")
	assert.Contains(t, paths, "/fail")
	assert.NotContains(t, paths, "/nowhere/123")
	assert.InDelta(t, 0, m.GetInFlight(), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m, "http_request_errors_total"))
}

func TestMetricsNilIsPassthrough(t *testing.T) {
	e := echo.New()
	e.Use(NewMetrics(nil, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestIDSetsTraceID(t *testing.T) {
	e := echo.New()
	e.Use(NewRequestID())
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = logger.TraceIDFromContext(c.Request().Context())
		assert.Equal(t, seen, RequestID(c))
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "upstream-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", seen)
}

func TestRequestLoggerTolerantOfNilLogger(t *testing.T) {
	e := echo.New()
	e.Use(NewRequestLogger(nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
