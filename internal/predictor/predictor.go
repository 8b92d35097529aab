// Package predictor runs the coordinate and biomass models on caller input:
// alignment, scaling, model invocation and reading results back.
package predictor

import (
	"time"

	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/observability/metrics"
)

// GetLogger returns the predictor package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("predictor")
}

// Option configures a predictor.
type Option func(*options)

type options struct {
	metrics *metrics.PredictorMetrics
}

// WithMetrics records prediction and model invoke metrics.
func WithMetrics(m *metrics.PredictorMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// instrument wraps model so backend call durations land in m.
func instrument(model inference.Model, m *metrics.PredictorMetrics, label string) inference.Model {
	if m == nil {
		return model
	}
	return inference.Instrument(model, func(backend string, elapsed time.Duration, _ error) {
		m.RecordModelInvoke(label, backend, elapsed)
	})
}
