package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	mw "github.com/sargazo/sargazo-predictor/internal/api/middleware"
	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/predictor"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // matches the X-Request-ID response header
}

// NewErrorResponse creates a new API error response. A fresh correlation id
// is generated when none is given.
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// StatusFor maps a prediction error to its HTTP status: caller mistakes and
// inference failures on caller data are 400, a predictor that failed to
// load is 503, anything else is 500.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, predictor.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case predictor.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the short, stable message paired with a status.
func messageFor(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Invalid prediction request"
	case http.StatusServiceUnavailable:
		return "Predictor not loaded"
	default:
		return http.StatusText(code)
	}
}

// handleError writes err as an ErrorResponse and logs it.
func (s *Server) handleError(c echo.Context, err error) error {
	code := StatusFor(err)
	return s.writeError(c, err, messageFor(code), code)
}

func (s *Server) writeError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code, mw.RequestID(c))
	c.Set(mw.ErrorTypeKey, string(errors.CategoryOf(err)))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("error", resp.Error),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	log := s.log.WithContext(c.Request().Context())
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		log.Error("API error", fields...)
		// enhanced errors were reported when they were built
		var ee *errors.EnhancedError
		if err != nil && !errors.As(err, &ee) {
			_ = errors.New(err).
				Component("api").
				Context("path", c.Path()).
				Context("correlation_id", resp.CorrelationID).
				Build()
		}
	} else {
		log.Debug("API error", fields...)
	}

	return c.JSON(code, resp)
}

// httpErrorHandler renders errors that escape handlers (unknown routes,
// body limit, rate limit, panics) in the same ErrorResponse shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}

	if c.Request().Method == http.MethodHead {
		if herr := c.NoContent(code); herr != nil {
			s.log.Warn("failed to write error response", logger.Error(herr))
		}
		return
	}
	if werr := s.writeError(c, err, message, code); werr != nil {
		s.log.Warn("failed to write error response", logger.Error(werr))
	}
}
