// Package inference defines the model capability shared by the predictors and
// the backends that implement it.
package inference

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Backend names accepted in settings.
const (
	BackendTFLite  = "tflite"
	BackendXGBoost = "xgboost"
	BackendRemote  = "remote"
)

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor checks that data has exactly the number of elements the shape implies.
func NewTensor(shape []int, data []float64) (Tensor, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("negative dimension in shape %v", shape)
		}
		n *= d
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// Len returns the number of elements.
func (t Tensor) Len() int {
	return len(t.Data)
}

// HasShape reports whether t has exactly the given dimensions.
func (t Tensor) HasShape(dims ...int) bool {
	if len(t.Shape) != len(dims) {
		return false
	}
	for i, d := range dims {
		if t.Shape[i] != d {
			return false
		}
	}
	return true
}

// Model runs a trained model on one input tensor.
type Model interface {
	Predict(ctx context.Context, input Tensor) (Tensor, error)
}

// Describer is implemented by models that can name their backend.
type Describer interface {
	Backend() string
}

// Close releases model resources when the model holds any.
func Close(m Model) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BackendOf returns the backend name of m, or "custom".
func BackendOf(m Model) string {
	if d, ok := m.(Describer); ok {
		return d.Backend()
	}
	return "custom"
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, input Tensor) (Tensor, error)

// Predict calls f.
func (f ModelFunc) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	return f(ctx, input)
}

// Observer receives the duration and outcome of every Predict call.
type Observer func(backend string, elapsed time.Duration, err error)

// Instrument wraps m so that obs sees every call. A nil observer returns m.
func Instrument(m Model, obs Observer) Model {
	if obs == nil {
		return m
	}
	return &instrumented{Model: m, backend: BackendOf(m), observe: obs}
}

type instrumented struct {
	Model
	backend string
	observe Observer
}

func (i *instrumented) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	start := time.Now()
	out, err := i.Model.Predict(ctx, input)
	i.observe(i.backend, time.Since(start), err)
	return out, err
}

func (i *instrumented) Backend() string { return i.backend }

func (i *instrumented) Close() error { return Close(i.Model) }
