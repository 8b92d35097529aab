package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
	"github.com/sargazo/sargazo-predictor/internal/scaling"
)

// Coordinates is a predicted position in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitud_siguiente"`
	Longitude float64 `json:"longitud_siguiente"`
}

// SequencePredictor predicts the next position of a sargassum mass from a
// window of observations. It is immutable and safe for concurrent use as
// long as its model is.
type SequencePredictor struct {
	cfg     *modelconfig.SequenceConfig
	idx     *modelconfig.Index
	scaler  scaling.Scaler
	model   inference.Model
	backend string
	metrics *metrics.PredictorMetrics
}

// NewSequencePredictor assembles a predictor from loaded artifacts.
func NewSequencePredictor(cfg *modelconfig.SequenceConfig, idx *modelconfig.Index, scaler scaling.Scaler, model inference.Model, opts ...Option) (*SequencePredictor, error) {
	if cfg == nil || idx == nil || scaler == nil || model == nil {
		return nil, errors.Newf("sequence predictor requires config, index, scaler and model").
			Component("predictor").
			Category(errors.CategoryModelInit).
			Build()
	}
	o := buildOptions(opts)
	return &SequencePredictor{
		cfg:     cfg,
		idx:     idx,
		scaler:  scaler,
		model:   instrument(model, o.metrics, metrics.LabelCoordinates),
		backend: inference.BackendOf(model),
		metrics: o.metrics,
	}, nil
}

// Config returns the loaded sequence configuration.
func (p *SequencePredictor) Config() *modelconfig.SequenceConfig { return p.cfg }

// StepCount returns the number of rows a sequence must have.
func (p *SequencePredictor) StepCount() int { return p.cfg.StepCount }

// Backend returns the model backend name.
func (p *SequencePredictor) Backend() string { return p.backend }

// Preprocess aligns seq to the training column layout, scales it and returns
// the feature columns as a (1, steps, features) tensor.
func (p *SequencePredictor) Preprocess(seq features.Sequence) (inference.Tensor, error) {
	aligned, err := features.Align(seq, p.cfg, p.idx)
	if err != nil {
		return inference.Tensor{}, validationFor(err)
	}

	scaled, err := p.scaler.Transform(aligned)
	if err != nil {
		return inference.Tensor{}, &InferenceError{Stage: "transform", Err: err}
	}

	selected := features.Extract(scaled, p.idx.FeatureColumns)
	data := selected.RawMatrix().Data
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return inference.Tensor{}, &InferenceError{Stage: "transform", Err: fmt.Errorf("scaled input contains non-finite values")}
		}
	}

	steps, width := selected.Dims()
	return inference.Tensor{Shape: []int{1, steps, width}, Data: data}, nil
}

// PredictNext runs the model on a preprocessed input and maps its two raw
// outputs back to real-world latitude and longitude.
func (p *SequencePredictor) PredictNext(ctx context.Context, input inference.Tensor) (Coordinates, error) {
	out, err := p.model.Predict(ctx, input)
	if err != nil {
		return Coordinates{}, &InferenceError{Stage: "invoke", Err: err}
	}

	if out.Len() < 2 {
		return Coordinates{}, &InferenceError{
			Stage: "output",
			Err:   fmt.Errorf("model returned %d values with shape %v, need 2", out.Len(), out.Shape),
		}
	}
	if !out.HasShape(1, 2) {
		GetLogger().Debug("unexpected model output shape, using first two values",
			logger.String("shape", fmt.Sprint(out.Shape)),
			logger.Int("values", out.Len()))
	}

	row := mat.NewDense(1, p.idx.Width, nil)
	row.Set(0, p.idx.LatitudeColumn, out.Data[0])
	row.Set(0, p.idx.LongitudeColumn, out.Data[1])

	restored, err := p.scaler.InverseTransform(row)
	if err != nil {
		return Coordinates{}, &InferenceError{Stage: "inverse", Err: err}
	}
	return Coordinates{
		Latitude:  restored.At(0, p.idx.LatitudeColumn),
		Longitude: restored.At(0, p.idx.LongitudeColumn),
	}, nil
}

// Predict runs Preprocess and PredictNext.
func (p *SequencePredictor) Predict(ctx context.Context, seq features.Sequence) (Coordinates, error) {
	start := time.Now()
	input, err := p.Preprocess(seq)
	if err == nil {
		var c Coordinates
		c, err = p.PredictNext(ctx, input)
		if err == nil {
			p.metrics.RecordPrediction(metrics.LabelCoordinates, time.Since(start), nil)
			GetLogger().Debug("coordinates predicted",
				logger.Float64("lat", c.Latitude),
				logger.Float64("lon", c.Longitude))
			return c, nil
		}
	}
	p.metrics.RecordPrediction(metrics.LabelCoordinates, time.Since(start), err)
	return Coordinates{}, err
}

// validationFor converts an aligner error into a ValidationError.
func validationFor(err error) error {
	var rowErr *features.RowCountError
	var colErr *features.ColumnCountError
	var shapeErr *features.ShapeError
	switch {
	case errors.As(err, &rowErr):
		return &ValidationError{
			Field:    "sequence",
			Expected: fmt.Sprintf("%d rows", rowErr.Expected),
			Received: fmt.Sprintf("%d rows", rowErr.Received),
			Err:      err,
		}
	case errors.As(err, &colErr):
		return &ValidationError{
			Field:    "sequence",
			Expected: fmt.Sprintf("%d columns", colErr.Expected),
			Received: fmt.Sprintf("%d columns", colErr.Received),
			Err:      err,
		}
	case errors.As(err, &shapeErr):
		return &ValidationError{
			Field:    "sequence",
			Expected: "non-empty rectangular 2-D array of numbers",
			Received: shapeErr.Reason,
			Err:      err,
		}
	default:
		return &ValidationError{Field: "sequence", Err: err}
	}
}
