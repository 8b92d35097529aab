package scaling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

func TestMinMaxRoundTrip(t *testing.T) {
	s, err := NewMinMax([]float64{-0.5, 0.1, 0}, []float64{0.01, 0.2, 0})
	require.NoError(t, err)

	in := mat.NewDense(2, 3, []float64{18.5, 3, 7, 19.25, -1, 7})
	scaled, err := s.Transform(in)
	require.NoError(t, err)
	assert.InDelta(t, 18.5*0.01-0.5, scaled.At(0, 0), 1e-12)
	assert.InDelta(t, 7, scaled.At(0, 2), 1e-12, "zero scale passes through")

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(in, back, 1e-9))
}

func TestStandardRoundTrip(t *testing.T) {
	s, err := NewStandard([]float64{20, -70}, []float64{2, 5})
	require.NoError(t, err)

	in := mat.NewDense(1, 2, []float64{24, -60})
	scaled, err := s.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, scaled.RawRowView(0))

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(in, back, 1e-12))
}

// Only the target columns matter on the inverse path: populating them in a
// zero row and inverting must recover their forward inputs.
func TestInverseOnTargetColumnsOnly(t *testing.T) {
	s, err := NewMinMax([]float64{1, 2, 3, 4}, []float64{0.5, 0.25, 2, 4})
	require.NoError(t, err)

	full := mat.NewDense(1, 4, []float64{10, 99, -3, 42})
	scaled, err := s.Transform(full)
	require.NoError(t, err)

	partial := mat.NewDense(1, 4, nil)
	partial.Set(0, 0, scaled.At(0, 0))
	partial.Set(0, 3, scaled.At(0, 3))
	back, err := s.InverseTransform(partial)
	require.NoError(t, err)

	assert.InDelta(t, 10, back.At(0, 0), 1e-9)
	assert.InDelta(t, 42, back.At(0, 3), 1e-9)
}

func TestColumnMismatch(t *testing.T) {
	s, err := NewStandard([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var cme *ColumnMismatchError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, 2, cme.Expected)
	assert.Equal(t, 3, cme.Received)
}

func TestIdentityCopies(t *testing.T) {
	in := mat.NewDense(1, 2, []float64{1, 2})
	out, err := Identity{}.Transform(in)
	require.NoError(t, err)
	out.Set(0, 0, 5)
	assert.InDelta(t, 1, in.At(0, 0), 0)
}

func TestParseKinds(t *testing.T) {
	s, err := Parse([]byte(`{"kind":"MinMaxScaler","min":[0],"scale":[2]}`))
	require.NoError(t, err)
	assert.IsType(t, &MinMax{}, s)

	s, err = Parse([]byte(`{"kind":"standard","mean":[1],"scale":[3]}`))
	require.NoError(t, err)
	assert.IsType(t, &Standard{}, s)

	s, err = Parse([]byte(`{"kind":"identity"}`))
	require.NoError(t, err)
	assert.Equal(t, Identity{}, s)

	for _, doc := range []string{
		`{"kind":"robust"}`,
		`{"min":[0],"scale":[1]}`,
		`{"kind":"minmax","min":[0,1],"scale":[1]}`,
		`not json`,
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sargazo_scaler.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"minmax","min":[0,0],"scale":[1,1]}`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.IsType(t, &MinMax{}, s)

	_, err = Load(filepath.Join(dir, "missing.json"))
	var nf *modelconfig.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "scaler", nf.Kind)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"kind":"pca"}`), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryScalerLoad))
}
