package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
)

// ErrorTypeKey is the echo context key handlers use to label a failed
// request in the HTTP error counter.
const ErrorTypeKey = "error_type"

// unmatchedRoute labels requests that hit no registered route, keeping
// path cardinality bounded.
const unmatchedRoute = "unmatched"

// NewMetrics records request counts, latency, response size and in-flight
// requests into m. Paths are the route templates, not raw URIs.
func NewMetrics(m *metrics.HTTPMetrics, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil || skipper(c) {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)

			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = unmatchedRoute
			}
			status := statusOf(c, err)

			m.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)
			if status >= http.StatusBadRequest {
				m.RecordHTTPRequestError(method, path, errorType(c, status))
			}
			return err
		}
	}
}

// statusOf returns the status the error handler will write for err, or the
// committed status when the handler wrote the response itself.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func errorType(c echo.Context, status int) string {
	if t, ok := c.Get(ErrorTypeKey).(string); ok && t != "" {
		return t
	}
	return strconv.Itoa(status)
}
