package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sargazo/sargazo-predictor/internal/buildinfo"
	"github.com/sargazo/sargazo-predictor/internal/conf"
)

const (
	tabularConfig = `{"features": ["a", "b"], "target": "sargassum_biomass", "model_type": "XGBRegressor"}`

	// a < 1.5 -> 1.0 else 2.0, plus b < 1.0 -> 0.5 else 2.0, base 0.5
	xgbModel = `{"learner": {
		"feature_names": ["a", "b"],
		"gradient_booster": {"name": "gbtree", "model": {"trees": [
			{"left_children":[1,-1,-1],"right_children":[2,-1,-1],"split_indices":[0,0,0],
			 "split_conditions":[1.5,1.0,2.0],"default_left":[1,0,0]},
			{"left_children":[1,-1,-1],"right_children":[2,-1,-1],"split_indices":[1,0,0],
			 "split_conditions":[1.0,0.5,2.0],"default_left":[0,0,0]}]}},
		"learner_model_param": {"base_score": "5E-1", "num_feature": "2"},
		"objective": {"name": "reg:squarederror"}}}`
)

// isolate runs the test from an empty directory with an empty home and a
// fresh global viper, so flags and config files from other tests do not leak.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(&conf.Settings{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// biomassOnly writes xgboost artifacts and a config enabling only the
// biomass predictor.
func biomassOnly(t *testing.T, dir string) string {
	t.Helper()
	modelDir := filepath.Join(dir, "biomass")
	writeFile(t, filepath.Join(modelDir, "biomasa_config.json"), tabularConfig)
	writeFile(t, filepath.Join(modelDir, "biomasa_xgb_model.json"), xgbModel)

	configPath := filepath.Join(dir, "sargazo.yaml")
	writeFile(t, configPath, `
logging:
  console:
    enabled: false
coordinates:
  enabled: false
biomass:
  enabled: true
  dir: `+modelDir+`
`)
	return configPath
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, buildinfo.Current().String()+"\n", out)
}

func TestConfigDump(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "config", "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "port: 8000")
	assert.Contains(t, out, "default_level: warn")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "etc", "config.yaml")

	out, err := execute(t, "", "config", "--init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	embedded, err := conf.GetDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, embedded, data)

	viper.Reset()
	_, err = execute(t, "", "config", "--init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	dir := isolate(t)
	configPath := biomassOnly(t, dir)

	out, err := execute(t, "", "--config", configPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 8000")

	viper.Reset()
	root := RootCommand(&conf.Settings{})
	serveCmd, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serveCmd.Flags().Set("port", "9100"))
	assert.Equal(t, 9100, viper.GetInt("server.port"))
}

func TestCheckReportsMissingArtifacts(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 predictor(s) failed to load")
	assert.Contains(t, out, "ERROR   coordinates:")
	assert.Contains(t, out, "ERROR   biomass:")
	assert.NotContains(t, out, "OK")
}

func TestCheckJSON(t *testing.T) {
	dir := isolate(t)
	configPath := biomassOnly(t, dir)

	out, err := execute(t, "", "--config", configPath, "check", "--json")
	require.NoError(t, err)

	var result buildinfo.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"coordinates: disabled"}, result.Warnings)
	assert.Empty(t, result.Errors)
}

func TestPredictBiomass(t *testing.T) {
	dir := isolate(t)
	configPath := biomassOnly(t, dir)

	out, err := execute(t, `{"a": 1, "b": 2, "unused": "x"}`, "--config", configPath, "predict", "biomass")
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 3.5, got["sargassum_biomass"], 1e-12)
}

func TestPredictBiomassFromFile(t *testing.T) {
	dir := isolate(t)
	configPath := biomassOnly(t, dir)
	input := filepath.Join(dir, "row.json")
	writeFile(t, input, `{"a": 2, "b": 0}`)

	out, err := execute(t, "", "--config", configPath, "predict", "biomass", "-i", input)
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 3.0, got["sargassum_biomass"], 1e-12)
}

func TestPredictBiomassRejectsBadInput(t *testing.T) {
	dir := isolate(t)
	configPath := biomassOnly(t, dir)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed JSON", `{"a": `, "invalid JSON"},
		{"non-numeric feature", `{"a": "one", "b": 2}`, `field "a" is a string`},
		{"missing feature", `{"a": 1}`, "missing features: b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			_, err := execute(t, tt.input, "--config", configPath, "predict", "biomass")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPredictCoordinatesRejectsBadSequence(t *testing.T) {
	isolate(t)

	_, err := execute(t, `{"sequence": [[1, 2], [3]]}`, "predict", "coordinates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sequence")
}

func TestPredictCoordinatesNeedsModel(t *testing.T) {
	isolate(t)

	_, err := execute(t, `[[1, 2], [3, 4]]`, "predict", "coordinates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinates")
}
