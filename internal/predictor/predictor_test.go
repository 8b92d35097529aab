package predictor

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
	"github.com/sargazo/sargazo-predictor/internal/scaling"
)

// constantModel returns out for every input of the expected shape.
func constantModel(t *testing.T, wantShape []int, out inference.Tensor) inference.Model {
	t.Helper()
	return inference.ModelFunc(func(_ context.Context, in inference.Tensor) (inference.Tensor, error) {
		if !in.HasShape(wantShape...) {
			return inference.Tensor{}, fmt.Errorf("unexpected input shape %v", in.Shape)
		}
		return out, nil
	})
}

func exampleSequenceConfig(t *testing.T) (*modelconfig.SequenceConfig, *modelconfig.Index) {
	t.Helper()
	cfg, idx, err := modelconfig.ParseSequence([]byte(
		`{"N_STEPS": 2, "FEATURES": ["t"], "TARGETS": ["lat", "lon"], "ALL_COLS": ["lat", "lon", "t"]}`), "test")
	require.NoError(t, err)
	return cfg, idx
}

func TestSequenceEndToEndIdentity(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	model := constantModel(t, []int{1, 2, 1}, inference.Tensor{Shape: []int{1, 2}, Data: []float64{0.5, -0.5}})

	p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, model)
	require.NoError(t, err)

	input, err := p.Preprocess(features.Sequence{{10}, {20}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, input.Shape)
	assert.Equal(t, []float64{10, 20}, input.Data)

	got, err := p.PredictNext(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Latitude: 0.5, Longitude: -0.5}, got)
}

func TestPreprocessShapeAndFiniteness(t *testing.T) {
	cfg, idx, err := modelconfig.ParseSequence([]byte(`{
		"N_STEPS": 3,
		"FEATURES": ["sst", "speed"],
		"TARGETS": ["lat", "lon"],
		"ALL_COLS": ["lat", "lon", "sst", "speed"]
	}`), "test")
	require.NoError(t, err)

	scaler, err := scaling.NewMinMax([]float64{-1, 2, -0.5, 0}, []float64{0.1, 0.01, 0.05, 0})
	require.NoError(t, err)
	p, err := NewSequencePredictor(cfg, idx, scaler, constantModel(t, []int{1, 3, 2}, inference.Tensor{}))
	require.NoError(t, err)

	input, err := p.Preprocess(features.Sequence{{26.1, 0.3}, {26.4, 0.2}, {27.0, 0.5}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, input.Shape)
	require.Len(t, input.Data, 6)
	for _, v := range input.Data {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	// sst column: x*0.05 - 0.5; speed column has zero scale and is treated as 1
	assert.InDelta(t, 26.1*0.05-0.5, input.Data[0], 1e-12)
	assert.InDelta(t, 0.3, input.Data[1], 1e-12)
}

func TestPreprocessRowCountMismatch(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, constantModel(t, nil, inference.Tensor{}))
	require.NoError(t, err)

	_, err = p.Preprocess(features.Sequence{{10}})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "2 rows", verr.Expected)
	assert.Equal(t, "1 rows", verr.Received)

	var rowErr *features.RowCountError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Expected)
	assert.Equal(t, 1, rowErr.Received)
	assert.Contains(t, err.Error(), "expected 2 rows, received 1")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.True(t, IsClientError(err))
}

func TestPreprocessValidationErrors(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, constantModel(t, nil, inference.Tensor{}))
	require.NoError(t, err)

	tests := map[string]features.Sequence{
		"empty":        {},
		"ragged":       {{1}, {1, 2}},
		"column count": {{1, 2}, {3, 4}},
	}
	for name, seq := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Preprocess(seq)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "sequence", verr.Field)
		})
	}
}

func TestTransformFailureIsInferenceError(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	// fitted on two columns, config has three
	scaler, err := scaling.NewStandard([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	p, err := NewSequencePredictor(cfg, idx, scaler, constantModel(t, nil, inference.Tensor{}))
	require.NoError(t, err)

	_, err = p.Preprocess(features.Sequence{{1}, {2}})
	var ierr *InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "transform", ierr.Stage)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
}

func TestPredictNextOutputShapes(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)

	tests := []struct {
		name    string
		out     inference.Tensor
		want    Coordinates
		wantErr bool
	}{
		{"batch of three", inference.Tensor{Shape: []int{3, 2}, Data: []float64{1, 2, 3, 4, 5, 6}}, Coordinates{Latitude: 1, Longitude: 2}, false},
		{"flat", inference.Tensor{Shape: []int{4}, Data: []float64{7, 8, 9, 10}}, Coordinates{Latitude: 7, Longitude: 8}, false},
		{"too few values", inference.Tensor{Shape: []int{1, 1}, Data: []float64{1}}, Coordinates{}, true},
		{"shape claims two values", inference.Tensor{Shape: []int{1, 2}, Data: []float64{1}}, Coordinates{}, true},
		{"empty", inference.Tensor{Shape: []int{1, 2}}, Coordinates{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, constantModel(t, []int{1, 2, 1}, tt.out))
			require.NoError(t, err)
			got, err := p.Predict(context.Background(), features.Sequence{{1}, {2}})
			if tt.wantErr {
				var ierr *InferenceError
				require.ErrorAs(t, err, &ierr)
				assert.Equal(t, "output", ierr.Stage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredictNextInverseScales(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	// lat = (x+90)/180 fitted range, lon = (x+180)/360, t arbitrary
	scaler, err := scaling.NewMinMax([]float64{0.5, 0.5, 0}, []float64{1.0 / 180, 1.0 / 360, 1})
	require.NoError(t, err)
	model := constantModel(t, []int{1, 2, 1}, inference.Tensor{Shape: []int{1, 2}, Data: []float64{0.6, 0.2}})

	p, err := NewSequencePredictor(cfg, idx, scaler, model)
	require.NoError(t, err)
	got, err := p.Predict(context.Background(), features.Sequence{{1}, {2}})
	require.NoError(t, err)
	assert.InDelta(t, (0.6-0.5)*180, got.Latitude, 1e-9)
	assert.InDelta(t, (0.2-0.5)*360, got.Longitude, 1e-9)
}

func TestScaleInverseIdempotentOnTargets(t *testing.T) {
	_, idx := exampleSequenceConfig(t)
	scaler, err := scaling.NewStandard([]float64{18.2, -64.7, 27}, []float64{2.5, 3.1, 1.2})
	require.NoError(t, err)

	for _, x := range []float64{-90, -12.345, 0, 17.5, 89.999} {
		row := mat.NewDense(1, idx.Width, nil)
		row.Set(0, idx.LatitudeColumn, x)
		row.Set(0, idx.LongitudeColumn, -x)

		forward, err := scaler.Transform(row)
		require.NoError(t, err)
		padded := mat.NewDense(1, idx.Width, nil)
		padded.Set(0, idx.LatitudeColumn, forward.At(0, idx.LatitudeColumn))
		padded.Set(0, idx.LongitudeColumn, forward.At(0, idx.LongitudeColumn))

		back, err := scaler.InverseTransform(padded)
		require.NoError(t, err)
		assert.InDelta(t, x, back.At(0, idx.LatitudeColumn), 1e-9)
		assert.InDelta(t, -x, back.At(0, idx.LongitudeColumn), 1e-9)
	}
}

func TestModelFailureIsInferenceError(t *testing.T) {
	cfg, idx := exampleSequenceConfig(t)
	boom := inference.ModelFunc(func(context.Context, inference.Tensor) (inference.Tensor, error) {
		return inference.Tensor{}, fmt.Errorf("invoke failed")
	})
	p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, boom)
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), features.Sequence{{1}, {2}})
	var ierr *InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "invoke", ierr.Stage)
	assert.ErrorContains(t, err, "invoke failed")
}

func TestTabularExample(t *testing.T) {
	cfg, err := modelconfig.ParseTabular([]byte(`{"features": ["a", "b"]}`), "test")
	require.NoError(t, err)

	model := inference.ModelFunc(func(_ context.Context, in inference.Tensor) (inference.Tensor, error) {
		if in.HasShape(1, 2) && in.Data[0] == 1 && in.Data[1] == 2 {
			return inference.Tensor{Shape: []int{1}, Data: []float64{3.5}}, nil
		}
		return inference.Tensor{}, fmt.Errorf("unexpected row %v", in.Data)
	})
	p, err := NewTabularPredictor(cfg, model)
	require.NoError(t, err)

	got, err := p.Predict(context.Background(), features.Vector{"a": 1, "b": 2, "c": 99})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 0)
}

func TestTabularMissingFeaturesListsAll(t *testing.T) {
	cfg, err := modelconfig.ParseTabular([]byte(`{"features": ["lat", "lon", "avg_sea_surface_temperature"]}`), "test")
	require.NoError(t, err)
	p, err := NewTabularPredictor(cfg, constantModel(t, nil, inference.Tensor{}))
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), features.Vector{"lon": -60})
	var merr *MissingFeaturesError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"lat", "avg_sea_surface_temperature"}, merr.Names)
	assert.Equal(t, "missing features: lat, avg_sea_surface_temperature", err.Error())
	assert.True(t, IsClientError(err))
}

func TestTabularEmptyOutput(t *testing.T) {
	cfg, err := modelconfig.ParseTabular([]byte(`{"features": ["a"]}`), "test")
	require.NoError(t, err)
	p, err := NewTabularPredictor(cfg, constantModel(t, []int{1, 1}, inference.Tensor{Shape: []int{0}}))
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), features.Vector{"a": 1})
	var ierr *InferenceError
	require.ErrorAs(t, err, &ierr)
}

func TestPredictorsRecordMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewPredictorMetrics(registry)
	require.NoError(t, err)

	cfg, idx := exampleSequenceConfig(t)
	model := constantModel(t, []int{1, 2, 1}, inference.Tensor{Shape: []int{1, 2}, Data: []float64{0, 0}})
	p, err := NewSequencePredictor(cfg, idx, scaling.Identity{}, model, WithMetrics(m))
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), features.Sequence{{1}, {2}})
	require.NoError(t, err)
	_, err = p.Predict(context.Background(), features.Sequence{{1}})
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionTotal.WithLabelValues(metrics.LabelCoordinates, metrics.StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionErrors.WithLabelValues(metrics.LabelCoordinates, "validation")), 0)
	// the model is only invoked for the valid sequence
	assert.Equal(t, 1, testutil.CollectAndCount(m.ModelInvokeDuration))
}

func TestNotLoadedIsStateCategory(t *testing.T) {
	err := fmt.Errorf("coordinates: %w", ErrNotLoaded)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.False(t, IsClientError(err))
}

func TestNewPredictorsRejectNil(t *testing.T) {
	_, err := NewSequencePredictor(nil, nil, nil, nil)
	require.Error(t, err)
	_, err = NewTabularPredictor(nil, nil)
	require.Error(t, err)
}
