// Package artifact loads trained fertility models, either from a tree
// ensemble manifest on disk or from a remote HTTP inference service.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/soilsense/soilsense/internal/fertility"
	"github.com/soilsense/soilsense/pkg/models"
)

// Kind is the estimator type stored in a manifest.
type Kind string

const (
	KindClassifier Kind = "random_forest_classifier"
	KindRegressor  Kind = "random_forest_regressor"
)

// leaf marks a missing child, as in sklearn's tree_ arrays.
const leaf = -1

// Tree is one decision tree in sklearn tree_ layout. Node i is a leaf when
// Left[i] == -1; otherwise samples with x[Feature[i]] <= Threshold[i] go left.
type Tree struct {
	Left      []int       `json:"left" yaml:"left"`
	Right     []int       `json:"right" yaml:"right"`
	Feature   []int       `json:"feature" yaml:"feature"`
	Threshold []float64   `json:"threshold" yaml:"threshold"`
	Value     [][]float64 `json:"value" yaml:"value"`
}

// Manifest is the on-disk model description.
type Manifest struct {
	Kind               Kind      `json:"kind" yaml:"kind"`
	Classes            []string  `json:"classes,omitempty" yaml:"classes,omitempty"`
	FeatureNames       []string  `json:"feature_names,omitempty" yaml:"feature_names,omitempty"`
	FeatureImportances []float64 `json:"feature_importances,omitempty" yaml:"feature_importances,omitempty"`
	Trees              []Tree    `json:"trees" yaml:"trees"`
}

// Validate checks the manifest structure so that inference cannot index out
// of range or loop.
func (m *Manifest) Validate() error {
	width := 1
	switch m.Kind {
	case KindClassifier:
		if len(m.Classes) == 0 {
			return errors.New("classifier manifest has no classes")
		}
		width = len(m.Classes)
	case KindRegressor:
	default:
		return fmt.Errorf("unsupported model kind %q", m.Kind)
	}

	if m.FeatureNames != nil {
		if len(m.FeatureNames) != models.NumFeatures {
			return fmt.Errorf("feature_names has %d entries, want %d", len(m.FeatureNames), models.NumFeatures)
		}
		for i, name := range m.FeatureNames {
			if name != string(models.FeatureSchema[i]) {
				return fmt.Errorf("feature_names[%d] is %q, want %q", i, name, models.FeatureSchema[i])
			}
		}
	}
	if m.FeatureImportances != nil && len(m.FeatureImportances) != models.NumFeatures {
		return fmt.Errorf("feature_importances has %d entries, want %d", len(m.FeatureImportances), models.NumFeatures)
	}

	if len(m.Trees) == 0 {
		return errors.New("manifest has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(width, m.Kind == KindClassifier); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(width int, classifier bool) error {
	n := len(t.Left)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.Right) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}

	for i := 0; i < n; i++ {
		if len(t.Value[i]) != width {
			return fmt.Errorf("node %d: value has %d entries, want %d", i, len(t.Value[i]), width)
		}
		if t.Left[i] == leaf {
			if t.Right[i] != leaf {
				return fmt.Errorf("node %d: only one child", i)
			}
			if classifier && sum(t.Value[i]) <= 0 {
				return fmt.Errorf("node %d: leaf has no class weight", i)
			}
			continue
		}
		// Children always follow their parent, which rules out cycles.
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= models.NumFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, t.Feature[i])
		}
		if math.IsNaN(t.Threshold[i]) || math.IsInf(t.Threshold[i], 0) {
			return fmt.Errorf("node %d: threshold is not finite", i)
		}
	}
	return nil
}

func (t *Tree) leafFor(x []float64) []float64 {
	node := 0
	for t.Left[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

// forest holds what both estimator kinds share. It is read-only after load.
type forest struct {
	trees       []Tree
	importances []float64
}

func (f *forest) FeatureImportances() []float64 {
	if f.importances == nil {
		return nil
	}
	return append([]float64(nil), f.importances...)
}

func checkWidth(x []float64) error {
	if len(x) != models.NumFeatures {
		return fmt.Errorf("got %d features, want %d", len(x), models.NumFeatures)
	}
	return nil
}

// ForestClassifier predicts a fertility label by averaging normalized leaf
// class distributions.
type ForestClassifier struct {
	forest
	classes []string
}

func (c *ForestClassifier) OutputKind() fertility.OutputKind {
	return fertility.OutputCategorical
}

func (c *ForestClassifier) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x); err != nil {
		return nil, err
	}
	probs := make([]float64, len(c.classes))
	for i := range c.trees {
		dist := c.trees[i].leafFor(x)
		total := sum(dist)
		for j, w := range dist {
			probs[j] += w / total
		}
	}
	for j := range probs {
		probs[j] /= float64(len(c.trees))
	}
	return probs, nil
}

func (c *ForestClassifier) Predict(ctx context.Context, x []float64) (fertility.ClassifierOutput, error) {
	probs, err := c.PredictProba(ctx, x)
	if err != nil {
		return fertility.ClassifierOutput{}, err
	}
	best := 0
	for j := range probs {
		if probs[j] > probs[best] {
			best = j
		}
	}
	return fertility.CategoricalOutput(c.classes[best]), nil
}

// ForestRegressor predicts a numeric fertility value as the mean leaf value.
type ForestRegressor struct {
	forest
}

func (r *ForestRegressor) OutputKind() fertility.OutputKind {
	return fertility.OutputNumeric
}

func (r *ForestRegressor) Predict(_ context.Context, x []float64) (fertility.ClassifierOutput, error) {
	if err := checkWidth(x); err != nil {
		return fertility.ClassifierOutput{}, err
	}
	var total float64
	for i := range r.trees {
		total += r.trees[i].leafFor(x)[0]
	}
	return fertility.NumericOutput(total / float64(len(r.trees))), nil
}

// NewEstimator validates a manifest and builds the matching classifier.
func NewEstimator(m *Manifest) (fertility.Classifier, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	base := forest{trees: m.Trees, importances: m.FeatureImportances}
	if m.Kind == KindClassifier {
		return &ForestClassifier{forest: base, classes: m.Classes}, nil
	}
	return &ForestRegressor{forest: base}, nil
}
