package metrics

import "time"

// Operation names used as metric labels.
const (
	// OpPrediction is a full predictor call, preprocessing included.
	OpPrediction = "prediction"
	// OpModelLoad is the startup load of one predictor's artifacts.
	OpModelLoad = "model_load"
	// OpModelInvoke is a single backend Predict call.
	OpModelInvoke = "model_invoke"
)

// Model label values.
const (
	// LabelCoordinates identifies the sequence (next position) predictor.
	LabelCoordinates = "coordinates"
	// LabelBiomass identifies the tabular (biomass) predictor.
	LabelBiomass = "biomass"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics listener.
const ShutdownTimeout = 5 * time.Second
