package modelconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sargazo/sargazo-predictor/internal/errors"
)

const validSequence = `{
	"N_STEPS": 5,
	"FEATURES": ["lat", "lon", "sst"],
	"TARGETS": ["lat", "lon"],
	"ALL_COLS": ["sst", "lat", "chl", "lon"]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSequence(t *testing.T) {
	path := writeFile(t, "sargazo_config.json", validSequence)

	cfg, idx, err := LoadSequence(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.StepCount)
	assert.Equal(t, []string{"lat", "lon", "sst"}, cfg.Features)
	assert.Equal(t, [2]string{"lat", "lon"}, cfg.Targets)
	assert.Equal(t, []int{1, 3, 0}, idx.FeatureColumns)
	assert.Equal(t, 1, idx.LatitudeColumn)
	assert.Equal(t, 3, idx.LongitudeColumn)
	assert.Equal(t, 4, idx.Width)

	col, ok := idx.Column("chl")
	assert.True(t, ok)
	assert.Equal(t, 2, col)
	_, ok = idx.Column("nope")
	assert.False(t, ok)
}

func TestLoadSequenceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, _, err := LoadSequence(path)
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, path, nf.Path)
	assert.True(t, errors.IsNotFound(err))
}

func TestParseSequenceMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		key  string
	}{
		{"not json", `[1,2`, ""},
		{"array document", `[]`, ""},
		{"missing steps", `{"FEATURES":["a"],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyStepCount},
		{"fractional steps", `{"N_STEPS":2.5,"FEATURES":["a"],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyStepCount},
		{"zero steps", `{"N_STEPS":0,"FEATURES":["a"],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyStepCount},
		{"steps as string", `{"N_STEPS":"5","FEATURES":["a"],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyStepCount},
		{"empty features", `{"N_STEPS":1,"FEATURES":[],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyFeatures},
		{"numeric feature", `{"N_STEPS":1,"FEATURES":[1],"TARGETS":["a","b"],"ALL_COLS":["a","b"]}`, keyFeatures},
		{"three targets", `{"N_STEPS":1,"FEATURES":["a"],"TARGETS":["a","b","a"],"ALL_COLS":["a","b"]}`, keyTargets},
		{"missing all cols", `{"N_STEPS":1,"FEATURES":["a"],"TARGETS":["a","b"]}`, keyAllColumns},
		{"duplicate all cols", `{"N_STEPS":1,"FEATURES":["a"],"TARGETS":["a","b"],"ALL_COLS":["a","b","a"]}`, keyAllColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseSequence([]byte(tt.doc), "test.json")
			require.Error(t, err)

			var mce *MalformedConfigError
			require.ErrorAs(t, err, &mce)
			assert.Equal(t, tt.key, mce.Key)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestParseSequenceInvalidFeatureSetListsEveryColumn(t *testing.T) {
	doc := `{"N_STEPS":3,"FEATURES":["lat","wind","sst"],"TARGETS":["lat","lon"],"ALL_COLS":["lat","sst"]}`

	_, _, err := ParseSequence([]byte(doc), "cfg.json")
	require.Error(t, err)

	var ife *InvalidFeatureSetError
	require.ErrorAs(t, err, &ife)
	assert.Equal(t, []string{"wind", "lon"}, ife.Columns)
	assert.Contains(t, err.Error(), "wind")
	assert.Contains(t, err.Error(), "lon")
}

func TestLoadTabularDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"features":["a","b"]}`)

	cfg, err := LoadTabular(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.Features)
	assert.Equal(t, DefaultTarget, cfg.Target)
	assert.Equal(t, DefaultModelType, cfg.ModelType)
}

func TestParseTabular(t *testing.T) {
	cfg, err := ParseTabular([]byte(`{"features":["lat"],"target":"biomass_kg","model_type":"XGBRegressor"}`), "t.json")
	require.NoError(t, err)
	assert.Equal(t, "biomass_kg", cfg.Target)

	_, err = ParseTabular([]byte(`{"target":"x"}`), "t.json")
	var mce *MalformedConfigError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "features", mce.Key)

	_, err = ParseTabular([]byte(`{"features":["a"],"target":7}`), "t.json")
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, "target", mce.Key)
}

func TestCheckExistsRejectsDirectory(t *testing.T) {
	err := CheckExists(t.TempDir(), "model")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "model", nf.Kind)
	assert.NoError(t, CheckExists(writeFile(t, "m.tflite", "x"), "model"))
}
