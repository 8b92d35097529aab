package xgboost

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

// GetLogger returns the xgboost backend logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("inference").Module("xgboost")
}

// Model adapts an Ensemble to inference.Model.
type Model struct {
	ensemble *Ensemble
}

// NewModel wraps an already parsed ensemble.
func NewModel(e *Ensemble) *Model {
	return &Model{ensemble: e}
}

// Load reads a save_model JSON file.
func Load(path string) (*Model, error) {
	start := time.Now()
	if err := modelconfig.CheckExists(path, "model"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator settings
	if err != nil {
		return nil, errors.New(err).
			Component("inference.xgboost").
			Category(errors.CategoryFileIO).
			ModelContext(path, inference.BackendXGBoost).
			Build()
	}

	ensemble, err := Parse(data)
	if err != nil {
		return nil, errors.New(err).
			Component("inference.xgboost").
			Category(errors.CategoryModelLoad).
			ModelContext(path, inference.BackendXGBoost).
			FileContext(path, int64(len(data))).
			Timing("model-parse", time.Since(start)).
			Build()
	}

	GetLogger().Info("model loaded",
		logger.String("path", path),
		logger.Int64("bytes", int64(len(data))),
		logger.String("objective", ensemble.Objective()),
		logger.Int("trees", ensemble.NumTrees()),
		logger.Int("num_feature", ensemble.NumFeatures()),
		logger.Duration("elapsed", time.Since(start)))
	return NewModel(ensemble), nil
}

// Ensemble returns the underlying tree ensemble.
func (m *Model) Ensemble() *Ensemble { return m.ensemble }

// Backend implements inference.Describer
func (m *Model) Backend() string { return inference.BackendXGBoost }

// Predict evaluates a (rows, features) tensor and returns one value per row
// with shape (rows).
func (m *Model) Predict(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return inference.Tensor{}, err
	}
	if len(input.Shape) != 2 {
		return inference.Tensor{}, fmt.Errorf("xgboost input must be 2-D, got shape %v", input.Shape)
	}
	rows, cols := input.Shape[0], input.Shape[1]
	if rows*cols != input.Len() {
		return inference.Tensor{}, fmt.Errorf("shape %v does not match %d values", input.Shape, input.Len())
	}

	out := make([]float64, rows)
	for r := range rows {
		v, err := m.ensemble.PredictRow(input.Data[r*cols : (r+1)*cols])
		if err != nil {
			return inference.Tensor{}, err
		}
		out[r] = v
	}
	return inference.Tensor{Shape: []int{rows}, Data: out}, nil
}
