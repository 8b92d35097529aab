package scaling

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

// GetLogger returns the scaling package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("scaling")
}

// artifact is the JSON export of a fitted scaler.
type artifact struct {
	Kind  string    `json:"kind"`
	Min   []float64 `json:"min"`
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Load reads a scaler artifact from path.
func Load(path string) (Scaler, error) {
	if err := modelconfig.CheckExists(path, "scaler"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator settings
	if err != nil {
		return nil, errors.New(fmt.Errorf("read scaler: %w", err)).
			Component("scaling").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	s, err := Parse(data)
	if err != nil {
		return nil, errors.New(fmt.Errorf("scaler %s: %w", path, err)).
			Component("scaling").
			Category(errors.CategoryScalerLoad).
			FileContext(path, int64(len(data))).
			Build()
	}

	GetLogger().Debug("scaler loaded",
		logger.String("path", path),
		logger.String("kind", fmt.Sprintf("%T", s)))
	return s, nil
}

// Parse builds a Scaler from an artifact document.
func Parse(data []byte) (Scaler, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode scaler artifact: %w", err)
	}

	switch strings.ToLower(a.Kind) {
	case KindMinMax, "minmaxscaler":
		return NewMinMax(a.Min, a.Scale)
	case KindStandard, "standardscaler":
		return NewStandard(a.Mean, a.Scale)
	case KindIdentity:
		return Identity{}, nil
	case "":
		return nil, fmt.Errorf("scaler artifact has no kind")
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", a.Kind)
	}
}
