package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sargazo/sargazo-predictor/internal/errors"
)

// PredictorMetrics holds the Prometheus metrics of both predictors.
type PredictorMetrics struct {
	registry *prometheus.Registry

	PredictionTotal     *prometheus.CounterVec
	PredictionErrors    *prometheus.CounterVec
	PredictionDuration  *prometheus.HistogramVec
	ModelInvokeDuration *prometheus.HistogramVec
	ModelLoadTotal      *prometheus.CounterVec
	ModelLoadDuration   *prometheus.HistogramVec
	ModelLoadedGauge    *prometheus.GaugeVec
	CacheLookups        *prometheus.CounterVec
}

// NewPredictorMetrics creates and registers a new set of predictor metrics.
func NewPredictorMetrics(registry *prometheus.Registry) (*PredictorMetrics, error) {
	m := &PredictorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PredictorMetrics) initMetrics() {
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sargazo_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"model", "status"}, // model: coordinates, biomass; status: success, error
	)

	m.PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sargazo_prediction_errors_total",
			Help: "Total number of failed predictions by error category",
		},
		[]string{"model", "error_type"},
	)

	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sargazo_prediction_duration_seconds",
			Help:    "Time taken for a prediction including preprocessing",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"model"},
	)

	m.ModelInvokeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sargazo_model_invoke_duration_seconds",
			Help:    "Time taken by the model backend for one call",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
		[]string{"model", "backend"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sargazo_model_load_total",
			Help: "Total number of predictor load attempts",
		},
		[]string{"model", "status"},
	)

	m.ModelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sargazo_model_load_duration_seconds",
			Help:    "Time taken to load a predictor's artifacts",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"model"},
	)

	m.ModelLoadedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sargazo_model_loaded",
			Help: "Whether the predictor is loaded (1) or not (0)",
		},
		[]string{"model"},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sargazo_prediction_cache_lookups_total",
			Help: "Prediction memo cache lookups",
		},
		[]string{"model", "result"}, // result: hit, miss
	)
}

// RecordPrediction records the outcome and duration of one predictor call.
func (m *PredictorMetrics) RecordPrediction(model string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.PredictionDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		m.PredictionTotal.WithLabelValues(model, StatusError).Inc()
		m.PredictionErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.PredictionTotal.WithLabelValues(model, StatusSuccess).Inc()
}

// RecordModelInvoke records the duration of one backend call.
func (m *PredictorMetrics) RecordModelInvoke(model, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ModelInvokeDuration.WithLabelValues(model, backend).Observe(duration.Seconds())
}

// RecordModelLoad records a load attempt and updates the loaded gauge.
func (m *PredictorMetrics) RecordModelLoad(model string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ModelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(model, StatusError).Inc()
		m.ModelLoadedGauge.WithLabelValues(model).Set(0)
		return
	}
	m.ModelLoadTotal.WithLabelValues(model, StatusSuccess).Inc()
	m.ModelLoadedGauge.WithLabelValues(model).Set(1)
}

// RecordCacheLookup counts a memo cache hit or miss.
func (m *PredictorMetrics) RecordCacheLookup(model string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(model, result).Inc()
}

// categorizeError maps an error to its category label.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	return string(errors.CategoryOf(err))
}

// Describe implements the prometheus.Collector interface.
func (m *PredictorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionTotal.Describe(ch)
	m.PredictionErrors.Describe(ch)
	m.PredictionDuration.Describe(ch)
	m.ModelInvokeDuration.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.ModelLoadDuration.Describe(ch)
	m.ModelLoadedGauge.Describe(ch)
	m.CacheLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PredictorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionTotal.Collect(ch)
	m.PredictionErrors.Collect(ch)
	m.PredictionDuration.Collect(ch)
	m.ModelInvokeDuration.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.ModelLoadDuration.Collect(ch)
	m.ModelLoadedGauge.Collect(ch)
	m.CacheLookups.Collect(ch)
}
