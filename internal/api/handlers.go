package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sargazo/sargazo-predictor/internal/app"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/predictor"
)

// SequenceRequest is the body of POST /predict. Sequence is decoded loosely
// so shape problems are reported by features.ParseSequence.
type SequenceRequest struct {
	Sequence any `json:"sequence"`
}

// predictCoordinates handles POST /predict. A predictor that is not loaded
// answers 503 before the body is looked at.
func (s *Server) predictCoordinates(c echo.Context) error {
	if _, err := s.app.Coordinates(); err != nil {
		return s.handleError(c, err)
	}

	var req SequenceRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, err, "Invalid request body", http.StatusBadRequest)
	}

	seq, err := features.ParseSequence(req.Sequence)
	if err != nil {
		return s.handleError(c, &predictor.ValidationError{Field: "sequence", Err: err})
	}

	out, err := s.app.PredictCoordinates(c.Request().Context(), seq)
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// predictBiomass handles POST /predict/biomass. The response is keyed by
// the model's configured target name.
func (s *Server) predictBiomass(c echo.Context) error {
	p, err := s.app.Biomass()
	if err != nil {
		return s.handleError(c, err)
	}
	cfg := p.Config()

	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return s.writeError(c, err, "Invalid request body", http.StatusBadRequest)
	}

	v, err := features.ParseVector(body, cfg.Features)
	if err != nil {
		return s.handleError(c, &predictor.ValidationError{Field: "features", Err: err})
	}

	out, err := s.app.PredictBiomass(c.Request().Context(), v)
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]float64{cfg.Target: out})
}

// healthCheck handles GET /health. It answers 200 while at least one
// predictor is usable and 503 when none is.
func (s *Server) healthCheck(c echo.Context) error {
	st := s.app.Status()
	code := http.StatusOK
	if st.Status == app.StatusUnavailable {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, st)
}
