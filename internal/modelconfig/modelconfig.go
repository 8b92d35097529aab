// Package modelconfig loads the JSON configuration that travels with each
// trained model and precomputes the column indices used by the predictors.
package modelconfig

import (
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	"github.com/sargazo/sargazo-predictor/internal/errors"
	"github.com/sargazo/sargazo-predictor/internal/logger"
)

// Defaults applied to tabular configs that omit the optional keys.
const (
	DefaultTarget    = "sargassum_biomass"
	DefaultModelType = "XGBRegressor"
)

// Sequence config keys
const (
	keyStepCount  = "N_STEPS"
	keyFeatures   = "FEATURES"
	keyTargets    = "TARGETS"
	keyAllColumns = "ALL_COLS"
)

// GetLogger returns the modelconfig package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("modelconfig")
}

// SequenceConfig describes the sequence model's input window and column layout.
type SequenceConfig struct {
	StepCount  int       `json:"N_STEPS" yaml:"n_steps"`
	Features   []string  `json:"FEATURES" yaml:"features"`
	Targets    [2]string `json:"TARGETS" yaml:"targets"` // latitude, longitude
	AllColumns []string  `json:"ALL_COLS" yaml:"all_cols"`
}

// TabularConfig describes the tabular model's input features.
type TabularConfig struct {
	Features  []string `json:"features" yaml:"features"`
	Target    string   `json:"target" yaml:"target"`
	ModelType string   `json:"model_type" yaml:"model_type"`
}

// Index holds positions into AllColumns computed once at load.
type Index struct {
	// FeatureColumns[i] is the AllColumns position of Features[i].
	FeatureColumns  []int
	LatitudeColumn  int
	LongitudeColumn int
	Width           int
	columns         map[string]int
}

// Column returns the position of name in AllColumns.
func (idx *Index) Column(name string) (int, bool) {
	i, ok := idx.columns[name]
	return i, ok
}

// CheckExists returns a NotFoundError if path does not name an existing file.
func CheckExists(path, kind string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return errors.New(&NotFoundError{Path: path, Kind: kind}).
			Component("modelconfig").
			Category(errors.CategoryNotFound).
			FileContext(path, 0).
			Build()
	}
	return nil
}

// LoadSequence reads and validates a sequence config file.
func LoadSequence(path string) (*SequenceConfig, *Index, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, idx, err := ParseSequence(data, path)
	if err != nil {
		return nil, nil, err
	}
	GetLogger().Debug("sequence config loaded",
		logger.String("path", path),
		logger.Int("n_steps", cfg.StepCount),
		logger.Strings("features", cfg.Features))
	return cfg, idx, nil
}

// ParseSequence validates a sequence config document. source names the
// document in error messages.
func ParseSequence(data []byte, source string) (*SequenceConfig, *Index, error) {
	doc, err := decodeObject(data, source)
	if err != nil {
		return nil, nil, err
	}

	cfg := &SequenceConfig{}
	if cfg.StepCount, err = requirePositiveInt(doc, keyStepCount, source); err != nil {
		return nil, nil, err
	}
	if cfg.Features, err = requireStrings(doc, keyFeatures, source); err != nil {
		return nil, nil, err
	}
	targets, err := requireStrings(doc, keyTargets, source)
	if err != nil {
		return nil, nil, err
	}
	if len(targets) != 2 {
		return nil, nil, &MalformedConfigError{Path: source, Key: keyTargets,
			Reason: fmt.Sprintf("expected exactly 2 targets, got %d", len(targets))}
	}
	cfg.Targets = [2]string{targets[0], targets[1]}
	if cfg.AllColumns, err = requireStrings(doc, keyAllColumns, source); err != nil {
		return nil, nil, err
	}

	idx, err := NewIndex(cfg, source)
	if err != nil {
		return nil, nil, err
	}
	return cfg, idx, nil
}

// NewIndex checks that every feature and target is a member of AllColumns and
// computes their positions.
func NewIndex(cfg *SequenceConfig, source string) (*Index, error) {
	columns := make(map[string]int, len(cfg.AllColumns))
	for i, name := range cfg.AllColumns {
		if _, dup := columns[name]; dup {
			return nil, &MalformedConfigError{Path: source, Key: keyAllColumns,
				Reason: fmt.Sprintf("duplicate column %q", name)}
		}
		columns[name] = i
	}

	var missing []string
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, cfg.Features...), cfg.Targets[:]...) {
		if _, ok := columns[name]; !ok && !seen[name] {
			missing = append(missing, name)
			seen[name] = true
		}
	}
	if len(missing) > 0 {
		return nil, &InvalidFeatureSetError{Path: source, Columns: missing}
	}

	idx := &Index{
		FeatureColumns:  make([]int, len(cfg.Features)),
		LatitudeColumn:  columns[cfg.Targets[0]],
		LongitudeColumn: columns[cfg.Targets[1]],
		Width:           len(cfg.AllColumns),
		columns:         columns,
	}
	for i, name := range cfg.Features {
		idx.FeatureColumns[i] = columns[name]
	}
	return idx, nil
}

// LoadTabular reads and validates a tabular config file.
func LoadTabular(path string) (*TabularConfig, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseTabular(data, path)
	if err != nil {
		return nil, err
	}
	GetLogger().Debug("tabular config loaded",
		logger.String("path", path),
		logger.String("model_type", cfg.ModelType),
		logger.Strings("features", cfg.Features))
	return cfg, nil
}

// ParseTabular validates a tabular config document, applying defaults for
// target and model_type.
func ParseTabular(data []byte, source string) (*TabularConfig, error) {
	doc, err := decodeObject(data, source)
	if err != nil {
		return nil, err
	}

	cfg := &TabularConfig{Target: DefaultTarget, ModelType: DefaultModelType}
	if cfg.Features, err = requireStrings(doc, "features", source); err != nil {
		return nil, err
	}
	if err := optionalString(doc, "target", source, &cfg.Target); err != nil {
		return nil, err
	}
	if err := optionalString(doc, "model_type", source, &cfg.ModelType); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfig(path string) ([]byte, error) {
	if err := CheckExists(path, "config"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator settings
	if err != nil {
		return nil, errors.New(fmt.Errorf("read config: %w", err)).
			Component("modelconfig").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	return data, nil
}

func decodeObject(data []byte, source string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedConfigError{Path: source, Reason: "not a JSON object", Err: err}
	}
	if doc == nil {
		return nil, &MalformedConfigError{Path: source, Reason: "not a JSON object"}
	}
	return doc, nil
}

func requirePositiveInt(doc map[string]any, key, source string) (int, error) {
	raw, ok := doc[key]
	if !ok {
		return 0, &MalformedConfigError{Path: source, Key: key, Reason: "missing"}
	}
	n, ok := raw.(float64)
	if !ok || n != math.Trunc(n) || n < 1 || n > math.MaxInt32 {
		return 0, &MalformedConfigError{Path: source, Key: key, Reason: "expected a positive integer"}
	}
	return int(n), nil
}

func requireStrings(doc map[string]any, key, source string) ([]string, error) {
	raw, ok := doc[key]
	if !ok {
		return nil, &MalformedConfigError{Path: source, Key: key, Reason: "missing"}
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, &MalformedConfigError{Path: source, Key: key, Reason: "expected a non-empty list of strings"}
	}
	out := make([]string, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, &MalformedConfigError{Path: source, Key: key,
				Reason: fmt.Sprintf("element %d is not a string", i)}
		}
		out[i] = s
	}
	return out, nil
}

func optionalString(doc map[string]any, key, source string, dst *string) error {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return &MalformedConfigError{Path: source, Key: key, Reason: "expected a string"}
	}
	*dst = s
	return nil
}
