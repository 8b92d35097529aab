// Package xgboost evaluates tree ensembles exported with XGBoost's
// save_model JSON format.
package xgboost

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// document mirrors the parts of the XGBoost JSON schema that prediction needs.
type document struct {
	Learner struct {
		FeatureNames     []string `json:"feature_names"`
		GradientBooster  booster  `json:"gradient_booster"`
		LearnerParameter struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumClass   string `json:"num_class"`
			NumTarget  string `json:"num_target"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
		// set by early stopping; prediction uses trees up to this round
		Attributes struct {
			BestIteration string `json:"best_iteration"`
		} `json:"attributes"`
	} `json:"learner"`
	Version []int `json:"version"`
}

type booster struct {
	Name string `json:"name"`
	// gbtree stores the model here
	Model *treeModel `json:"model"`
	// dart nests a gbtree and per-tree weights
	GBTree *struct {
		Model *treeModel `json:"model"`
	} `json:"gbtree"`
	WeightDrop []float64 `json:"weight_drop"`
}

type treeModel struct {
	Trees    []tree `json:"trees"`
	TreeInfo []int  `json:"tree_info"`
	Param    struct {
		NumParallelTree string `json:"num_parallel_tree"`
	} `json:"gbtree_model_param"`
}

type tree struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flexBools `json:"default_left"`
	SplitType       []int     `json:"split_type"`
}

// flexBools decodes default_left, written as booleans or 0/1 integers
// depending on the XGBoost version.
type flexBools []bool

func (f *flexBools) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case bool:
			out[i] = x
		case float64:
			out[i] = x != 0
		default:
			return fmt.Errorf("default_left[%d]: unexpected %T", i, v)
		}
	}
	*f = out
	return nil
}

// link converts a raw margin into the objective's output space.
type link int

const (
	linkIdentity link = iota
	linkSigmoid
	linkExp
)

// Ensemble is a loaded, validated tree ensemble. It is immutable and safe
// for concurrent use.
type Ensemble struct {
	trees        []tree
	weights      []float64
	baseMargin   float64
	link         link
	objective    string
	numFeatures  int
	featureNames []string
}

// Parse validates and loads a save_model JSON document.
func Parse(data []byte) (*Ensemble, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xgboost model: %w", err)
	}

	gb := doc.Learner.GradientBooster
	var model *treeModel
	var weights []float64
	switch gb.Name {
	case "gbtree":
		model = gb.Model
	case "dart":
		if gb.GBTree != nil {
			model = gb.GBTree.Model
		}
		weights = gb.WeightDrop
	case "":
		return nil, fmt.Errorf("model has no gradient_booster")
	default:
		return nil, fmt.Errorf("unsupported booster %q", gb.Name)
	}
	if model == nil || len(model.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	if weights != nil && len(weights) != len(model.Trees) {
		return nil, fmt.Errorf("dart weight_drop has %d entries for %d trees", len(weights), len(model.Trees))
	}

	param := doc.Learner.LearnerParameter
	if n, _ := parseCount(param.NumClass); n > 1 {
		return nil, fmt.Errorf("multi-class models are not supported")
	}
	if n, _ := parseCount(param.NumTarget); n > 1 {
		return nil, fmt.Errorf("multi-target models are not supported")
	}
	numFeatures, err := parseCount(param.NumFeature)
	if err != nil {
		return nil, fmt.Errorf("num_feature: %w", err)
	}

	baseScore, err := parseBaseScore(param.BaseScore)
	if err != nil {
		return nil, err
	}
	objective := doc.Learner.Objective.Name
	lnk, err := linkFor(objective)
	if err != nil {
		return nil, err
	}
	baseMargin, err := toMargin(baseScore, lnk)
	if err != nil {
		return nil, err
	}

	for i := range model.Trees {
		if err := model.Trees[i].validate(numFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	trees, err := bestIterationTrees(model, doc.Learner.Attributes.BestIteration)
	if err != nil {
		return nil, err
	}
	if weights != nil {
		weights = weights[:len(trees)]
	}

	return &Ensemble{
		trees:        trees,
		weights:      weights,
		baseMargin:   baseMargin,
		link:         lnk,
		objective:    objective,
		numFeatures:  numFeatures,
		featureNames: doc.Learner.FeatureNames,
	}, nil
}

// bestIterationTrees returns the trees XGBoost predicts with: all of them,
// or the first best_iteration+1 boosting rounds of an early-stopped model.
// Each round adds num_parallel_tree trees per output group, and tree_info
// holds the output group of every tree.
func bestIterationTrees(model *treeModel, bestIteration string) ([]tree, error) {
	if strings.TrimSpace(bestIteration) == "" {
		return model.Trees, nil
	}
	best, err := parseCount(bestIteration)
	if err != nil {
		return nil, fmt.Errorf("best_iteration: %w", err)
	}
	parallel, err := parseCount(model.Param.NumParallelTree)
	if err != nil {
		return nil, fmt.Errorf("num_parallel_tree: %w", err)
	}
	parallel = max(parallel, 1)
	groups := 1
	for _, g := range model.TreeInfo {
		groups = max(groups, g+1)
	}

	n := (best + 1) * parallel * groups
	if n >= len(model.Trees) {
		return model.Trees, nil
	}
	return model.Trees[:n], nil
}

// NumFeatures returns the trained input width, or 0 if the model does not record it.
func (e *Ensemble) NumFeatures() int { return e.numFeatures }

// FeatureNames returns the training column names when the model stores them.
func (e *Ensemble) FeatureNames() []string { return e.featureNames }

// Objective returns the training objective name.
func (e *Ensemble) Objective() string { return e.objective }

// NumTrees returns the ensemble size.
func (e *Ensemble) NumTrees() int { return len(e.trees) }

// PredictRow evaluates one feature row. NaN marks a missing value.
func (e *Ensemble) PredictRow(row []float64) (float64, error) {
	if e.numFeatures > 0 && len(row) != e.numFeatures {
		return 0, fmt.Errorf("row has %d features, model expects %d", len(row), e.numFeatures)
	}
	margin := e.baseMargin
	for i := range e.trees {
		leaf, err := e.trees[i].leaf(row)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		if e.weights != nil {
			leaf *= e.weights[i]
		}
		margin += leaf
	}
	return e.link.apply(margin), nil
}

func (t *tree) validate(numFeatures int) error {
	n := len(t.LeftChildren)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return fmt.Errorf("node arrays have inconsistent lengths")
	}
	if len(t.DefaultLeft) != n {
		return fmt.Errorf("default_left has %d entries for %d nodes", len(t.DefaultLeft), n)
	}
	for _, st := range t.SplitType {
		if st != 0 {
			return fmt.Errorf("categorical splits are not supported")
		}
	}
	for i := range n {
		l, r := t.LeftChildren[i], t.RightChildren[i]
		if l == -1 {
			continue
		}
		// children always follow their parent in XGBoost's node order
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if idx := t.SplitIndices[i]; idx < 0 || (numFeatures > 0 && idx >= numFeatures) {
			return fmt.Errorf("node %d splits on feature %d", i, idx)
		}
	}
	return nil
}

func (t *tree) leaf(row []float64) (float64, error) {
	node := 0
	for t.LeftChildren[node] != -1 {
		feature := t.SplitIndices[node]
		if feature >= len(row) {
			return 0, fmt.Errorf("split on feature %d beyond row width %d", feature, len(row))
		}
		v := row[feature]
		switch {
		case math.IsNaN(v):
			if t.DefaultLeft[node] {
				node = t.LeftChildren[node]
			} else {
				node = t.RightChildren[node]
			}
		// features and thresholds are float32 inside XGBoost
		case float32(v) < float32(t.SplitConditions[node]):
			node = t.LeftChildren[node]
		default:
			node = t.RightChildren[node]
		}
	}
	return t.SplitConditions[node], nil
}

func linkFor(objective string) (link, error) {
	switch objective {
	case "", "reg:squarederror", "reg:linear", "reg:squaredlogerror", "reg:pseudohubererror",
		"reg:absoluteerror", "reg:quantileerror":
		return linkIdentity, nil
	case "reg:logistic", "binary:logistic":
		return linkSigmoid, nil
	case "count:poisson", "reg:gamma", "reg:tweedie":
		return linkExp, nil
	default:
		return 0, fmt.Errorf("unsupported objective %q", objective)
	}
}

func toMargin(baseScore float64, l link) (float64, error) {
	switch l {
	case linkSigmoid:
		if baseScore <= 0 || baseScore >= 1 {
			return 0, fmt.Errorf("base_score %g outside (0, 1) for logistic objective", baseScore)
		}
		return math.Log(baseScore / (1 - baseScore)), nil
	case linkExp:
		if baseScore <= 0 {
			return 0, fmt.Errorf("base_score %g must be positive for log-link objective", baseScore)
		}
		return math.Log(baseScore), nil
	default:
		return baseScore, nil
	}
}

func (l link) apply(margin float64) float64 {
	switch l {
	case linkSigmoid:
		return 1 / (1 + math.Exp(-margin))
	case linkExp:
		return math.Exp(margin)
	default:
		return margin
	}
}

// parseBaseScore accepts "5E-1" and the bracketed vector form "[5E-1]".
func parseBaseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return 0.5, nil
	}
	if strings.Contains(s, ",") {
		return 0, fmt.Errorf("vector base_score %q is not supported", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("base_score %q: %w", s, err)
	}
	return v, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}
