package tflite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sargazo/sargazo-predictor/internal/inference"
	"github.com/sargazo/sargazo-predictor/internal/modelconfig"
)

func TestLoadMissingModel(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "sargazo_lstm_model.tflite"), Options{})
	require.Error(t, err)

	var nf *modelconfig.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "model", nf.Kind)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tflite")
	require.NoError(t, os.WriteFile(path, []byte("not a flatbuffer"), 0o600))

	_, err := Load(path, Options{Threads: 1})
	require.Error(t, err)
}

// TestPredictWithConvertedModel runs the converted LSTM named by
// SARGAZO_TEST_TFLITE_MODEL with a zero input of the model's own shape.
func TestPredictWithConvertedModel(t *testing.T) {
	path := os.Getenv("SARGAZO_TEST_TFLITE_MODEL")
	if path == "" {
		t.Skip("SARGAZO_TEST_TFLITE_MODEL not set")
	}

	m, err := Load(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	n := 1
	for _, d := range m.inputDims {
		n *= d
	}
	input, err := inference.NewTensor(m.inputDims, make([]float64, n))
	require.NoError(t, err)

	out, err := m.Predict(context.Background(), input)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Len(), 2)

	require.NoError(t, m.Close())
	_, err = m.Predict(context.Background(), input)
	require.Error(t, err)
}
