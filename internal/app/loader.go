package app

import (
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/httpclient"
	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/inference/remote"
	"github.com/sargazo/sargazo-predictor/internal/inference/tflite"
	"github.com/sargazo/sargazo-predictor/internal/inference/xgboost"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
	"github.com/sargazo/sargazo-predictor/internal/predictor"
	"github.com/sargazo/sargazo-predictor/internal/scaling"
)

type loader struct {
	settings *conf.Settings
	client   *httpclient.Client
	metrics  *metrics.PredictorMetrics
}

// coordinates loads the next-position predictor. Files are checked for
// existence in config, scaler, model order before any is parsed.
func (l *loader) coordinates() (*predictor.SequencePredictor, func() error, error) {
	s := l.settings.Coordinates
	a := l.settings.CoordinateArtifacts()
	remoteBackend := s.Backend == inference.BackendRemote

	if err := modelconfig.CheckExists(a.Config, "config"); err != nil {
		return nil, nil, err
	}
	if err := modelconfig.CheckExists(a.Scaler, "scaler"); err != nil {
		return nil, nil, err
	}
	if !remoteBackend {
		if err := modelconfig.CheckExists(a.Model, "model"); err != nil {
			return nil, nil, err
		}
	}

	cfg, idx, err := modelconfig.LoadSequence(a.Config)
	if err != nil {
		return nil, nil, err
	}
	scaler, err := scaling.Load(a.Scaler)
	if err != nil {
		return nil, nil, err
	}
	// a scaler fitted on a different column set fails here instead of on
	// the first request
	if _, err := scaler.Transform(mat.NewDense(1, idx.Width, nil)); err != nil {
		return nil, nil, errors.New(fmt.Errorf("scaler does not match ALL_COLS of %s: %w", a.Config, err)).
			Component("app").
			Category(errors.CategoryConfiguration).
			FileContext(a.Scaler, 0).
			Build()
	}

	var model inference.Model
	switch s.Backend {
	case inference.BackendTFLite:
		model, err = tflite.Load(a.Model, tflite.Options{Threads: s.Threads})
	case inference.BackendRemote:
		model, err = remote.New(remote.Config{URL: s.Remote.URL, Timeout: s.Remote.Timeout}, l.client)
	default:
		err = unsupportedBackend("coordinates", s.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	p, err := predictor.NewSequencePredictor(cfg, idx, scaler, model, predictor.WithMetrics(l.metrics))
	if err != nil {
		_ = inference.Close(model)
		return nil, nil, err
	}
	return p, func() error { return inference.Close(model) }, nil
}

// biomass loads the biomass predictor: config, then model.
func (l *loader) biomass() (*predictor.TabularPredictor, func() error, error) {
	s := l.settings.Biomass
	a := l.settings.BiomassArtifacts()
	remoteBackend := s.Backend == inference.BackendRemote

	if err := modelconfig.CheckExists(a.Config, "config"); err != nil {
		return nil, nil, err
	}
	if !remoteBackend {
		if err := modelconfig.CheckExists(a.Model, "model"); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := modelconfig.LoadTabular(a.Config)
	if err != nil {
		return nil, nil, err
	}

	var model inference.Model
	switch s.Backend {
	case inference.BackendXGBoost:
		var xm *xgboost.Model
		xm, err = xgboost.Load(a.Model)
		if err == nil {
			err = checkEnsemble(xm.Ensemble(), cfg, a.Model)
		}
		model = xm
	case inference.BackendRemote:
		model, err = remote.New(remote.Config{URL: s.Remote.URL, Timeout: s.Remote.Timeout}, l.client)
	default:
		err = unsupportedBackend("biomass", s.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	p, err := predictor.NewTabularPredictor(cfg, model, predictor.WithMetrics(l.metrics))
	if err != nil {
		_ = inference.Close(model)
		return nil, nil, err
	}
	return p, func() error { return inference.Close(model) }, nil
}

// checkEnsemble rejects a model trained on a different feature layout than
// the config declares. Feature order matters since rows are positional.
func checkEnsemble(e *xgboost.Ensemble, cfg *modelconfig.TabularConfig, path string) error {
	if n := e.NumFeatures(); n > 0 && n != len(cfg.Features) {
		return errors.New(fmt.Errorf("model expects %d features, config lists %d", n, len(cfg.Features))).
			Component("app").
			Category(errors.CategoryConfiguration).
			ModelContext(path, inference.BackendXGBoost).
			Build()
	}
	if names := e.FeatureNames(); len(names) > 0 && !slices.Equal(names, cfg.Features) {
		return errors.New(fmt.Errorf("model feature names %v differ from config features %v", names, cfg.Features)).
			Component("app").
			Category(errors.CategoryConfiguration).
			ModelContext(path, inference.BackendXGBoost).
			Build()
	}
	if e.Objective() != "" && cfg.ModelType != modelconfig.DefaultModelType {
		GetLogger().Warn("config model_type differs from the loaded backend",
			logger.String("model_type", cfg.ModelType),
			logger.String("objective", e.Objective()))
	}
	return nil
}

func unsupportedBackend(predictorName, backend string) error {
	return errors.Newf("unsupported %s backend %q", predictorName, backend).
		Component("app").
		Category(errors.CategoryConfiguration).
		Build()
}

// cacheKey encodes a request input into a memo key.
func cacheKey(model string, input any) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return model + ":" + string(b), nil
}
