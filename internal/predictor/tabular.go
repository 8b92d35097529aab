package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
)

// TabularPredictor predicts sargassum biomass from named features. The
// model consumes raw feature values; no scaler is involved.
type TabularPredictor struct {
	cfg     *modelconfig.TabularConfig
	model   inference.Model
	backend string
	metrics *metrics.PredictorMetrics
}

// NewTabularPredictor assembles a predictor from loaded artifacts.
func NewTabularPredictor(cfg *modelconfig.TabularConfig, model inference.Model, opts ...Option) (*TabularPredictor, error) {
	if cfg == nil || model == nil {
		return nil, errors.Newf("tabular predictor requires config and model").
			Component("predictor").
			Category(errors.CategoryModelInit).
			Build()
	}
	o := buildOptions(opts)
	return &TabularPredictor{
		cfg:     cfg,
		model:   instrument(model, o.metrics, metrics.LabelBiomass),
		backend: inference.BackendOf(model),
		metrics: o.metrics,
	}, nil
}

// Config returns the loaded tabular configuration.
func (p *TabularPredictor) Config() *modelconfig.TabularConfig { return p.cfg }

// Backend returns the model backend name.
func (p *TabularPredictor) Backend() string { return p.backend }

// Predict builds a row in feature order from v and returns the model output.
// All absent features are reported together.
func (p *TabularPredictor) Predict(ctx context.Context, v features.Vector) (float64, error) {
	start := time.Now()
	value, err := p.predict(ctx, v)
	p.metrics.RecordPrediction(metrics.LabelBiomass, time.Since(start), err)
	return value, err
}

func (p *TabularPredictor) predict(ctx context.Context, v features.Vector) (float64, error) {
	if missing := v.Missing(p.cfg.Features); len(missing) > 0 {
		return 0, &MissingFeaturesError{Names: missing}
	}

	row := v.Row(p.cfg.Features)
	out, err := p.model.Predict(ctx, inference.Tensor{Shape: []int{1, len(row)}, Data: row})
	if err != nil {
		return 0, &InferenceError{Stage: "invoke", Err: err}
	}
	if out.Len() == 0 {
		return 0, &InferenceError{Stage: "output", Err: fmt.Errorf("model returned no values")}
	}
	return out.Data[0], nil
}
