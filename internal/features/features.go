// Package features converts caller input into matrices laid out in the
// column order the models were trained with.
package features

import (
	"fmt"
	"math"
	"slices"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

// Sequence is a time-ordered window of feature rows, each in Features order.
type Sequence [][]float64

// Vector is a tabular feature row keyed by feature name. Extra keys are ignored.
type Vector map[string]float64

// Align validates seq against cfg and places it into a zero matrix of shape
// (steps, len(AllColumns)), copying caller column i to idx.FeatureColumns[i].
func Align(seq Sequence, cfg *modelconfig.SequenceConfig, idx *modelconfig.Index) (*mat.Dense, error) {
	if err := checkRectangular(seq); err != nil {
		return nil, err
	}
	if len(seq) != cfg.StepCount {
		return nil, &RowCountError{Expected: cfg.StepCount, Received: len(seq)}
	}
	if width := len(seq[0]); width != len(cfg.Features) {
		return nil, &ColumnCountError{Expected: len(cfg.Features), Received: width}
	}

	aligned := mat.NewDense(len(seq), idx.Width, nil)
	for r, row := range seq {
		for i, v := range row {
			aligned.Set(r, idx.FeatureColumns[i], v)
		}
	}
	return aligned, nil
}

// Extract reads the given columns of m, in order, into a new matrix.
func Extract(m mat.Matrix, columns []int) *mat.Dense {
	rows, _ := m.Dims()
	out := mat.NewDense(rows, len(columns), nil)
	for r := range rows {
		for i, c := range columns {
			out.Set(r, i, m.At(r, c))
		}
	}
	return out
}

// Missing returns the names in order that are absent from v.
func (v Vector) Missing(order []string) []string {
	var missing []string
	for _, name := range order {
		if _, ok := v[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row returns the values of v in the given order. Callers check Missing first.
func (v Vector) Row(order []string) []float64 {
	row := make([]float64, len(order))
	for i, name := range order {
		row[i] = v[name]
	}
	return row
}

func checkRectangular(seq Sequence) error {
	if len(seq) == 0 {
		return &ShapeError{Reason: "sequence is empty"}
	}
	width := len(seq[0])
	if width == 0 {
		return &ShapeError{Reason: "rows are empty"}
	}
	for r, row := range seq {
		if len(row) != width {
			return &ShapeError{Reason: fmt.Sprintf("row %d has %d values, row 0 has %d", r, len(row), width)}
		}
	}
	return nil
}

// ParseSequence converts a decoded JSON value into a Sequence. Anything other
// than a non-empty rectangular array of numeric arrays is a ShapeError.
// Numbers may arrive as float64 or json.Number.
func ParseSequence(raw any) (Sequence, error) {
	outer, ok := raw.([]any)
	if !ok {
		return nil, &ShapeError{Reason: fmt.Sprintf("expected a 2-D array, got %s", kindOf(raw))}
	}
	seq := make(Sequence, len(outer))
	for r, item := range outer {
		inner, ok := item.([]any)
		if !ok {
			return nil, &ShapeError{Reason: fmt.Sprintf("row %d is %s, expected an array", r, kindOf(item))}
		}
		row := make([]float64, len(inner))
		for c, v := range inner {
			f, ok := toFloat(v)
			if !ok {
				return nil, &ShapeError{Reason: fmt.Sprintf("value at [%d][%d] is not numeric", r, c)}
			}
			row[c] = f
		}
		seq[r] = row
	}
	if err := checkRectangular(seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// ParseVector converts a decoded JSON object into a Vector. Null values are
// treated as absent so Missing reports them. Non-numeric values are a
// ShapeError when their key is in required; other keys are dropped.
func ParseVector(raw map[string]any, required []string) (Vector, error) {
	v := make(Vector, len(raw))
	for name, item := range raw {
		if item == nil {
			continue
		}
		f, ok := toFloat(item)
		if ok {
			v[name] = f
			continue
		}
		if slices.Contains(required, name) {
			return nil, &ShapeError{Reason: fmt.Sprintf("field %q is %s, expected a finite number", name, kindOf(item))}
		}
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a scalar"
	}
}
