// Package scaling applies fitted per-column scalers to aligned matrices.
package scaling

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Scaler is a fitted per-column transform and its inverse.
type Scaler interface {
	Transform(m mat.Matrix) (*mat.Dense, error)
	InverseTransform(m mat.Matrix) (*mat.Dense, error)
}

// Scaler kinds as written in the artifact's "kind" field.
const (
	KindMinMax   = "minmax"
	KindStandard = "standard"
	KindIdentity = "identity"
)

// MinMax maps x to x*Scale + Min per column.
type MinMax struct {
	Min   []float64
	Scale []float64
}

// NewMinMax validates the parameter lengths.
func NewMinMax(minValues, scale []float64) (*MinMax, error) {
	if len(minValues) == 0 || len(minValues) != len(scale) {
		return nil, fmt.Errorf("minmax scaler: min has %d values, scale has %d", len(minValues), len(scale))
	}
	return &MinMax{Min: minValues, Scale: nonZero(scale)}, nil
}

func (s *MinMax) Transform(m mat.Matrix) (*mat.Dense, error) {
	return apply(m, len(s.Scale), func(c int, v float64) float64 { return v*s.Scale[c] + s.Min[c] })
}

func (s *MinMax) InverseTransform(m mat.Matrix) (*mat.Dense, error) {
	return apply(m, len(s.Scale), func(c int, v float64) float64 { return (v - s.Min[c]) / s.Scale[c] })
}

// Standard maps x to (x - Mean) / Scale per column.
type Standard struct {
	Mean  []float64
	Scale []float64
}

// NewStandard validates the parameter lengths.
func NewStandard(mean, scale []float64) (*Standard, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("standard scaler: mean has %d values, scale has %d", len(mean), len(scale))
	}
	return &Standard{Mean: mean, Scale: nonZero(scale)}, nil
}

func (s *Standard) Transform(m mat.Matrix) (*mat.Dense, error) {
	return apply(m, len(s.Scale), func(c int, v float64) float64 { return (v - s.Mean[c]) / s.Scale[c] })
}

func (s *Standard) InverseTransform(m mat.Matrix) (*mat.Dense, error) {
	return apply(m, len(s.Scale), func(c int, v float64) float64 { return v*s.Scale[c] + s.Mean[c] })
}

// Identity returns copies of its input.
type Identity struct{}

func (Identity) Transform(m mat.Matrix) (*mat.Dense, error) {
	return mat.DenseCopyOf(m), nil
}

func (Identity) InverseTransform(m mat.Matrix) (*mat.Dense, error) {
	return mat.DenseCopyOf(m), nil
}

// ColumnMismatchError reports a matrix whose width differs from the fitted width.
type ColumnMismatchError struct {
	Expected int
	Received int
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("scaler column mismatch: fitted on %d columns, got %d", e.Expected, e.Received)
}

func apply(m mat.Matrix, width int, fn func(c int, v float64) float64) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if cols != width {
		return nil, &ColumnMismatchError{Expected: width, Received: cols}
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(r, c int, v float64) float64 { return fn(c, v) }, m)
	return out, nil
}

// nonZero replaces zero scale entries with 1 so constant columns pass through.
func nonZero(scale []float64) []float64 {
	out := make([]float64, len(scale))
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}
