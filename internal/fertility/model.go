package fertility

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/soilsense/soilsense/pkg/models"
)

// DefaultConfidence is reported when the classifier exposes no probabilities.
const DefaultConfidence = 0.85

// Inference stages, reported in InferenceError.
const (
	StagePreprocess = "preprocess"
	StagePredict    = "predict"
	StageProba      = "predict_proba"
	StageInterpret  = "interpret"
	StageExplain    = "explain"
)

// InferenceError wraps any failure of the model-backed path. It never reaches
// callers of the Predictor; it triggers the rule engine fallback.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed during %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// OutputKind tags a ClassifierOutput.
type OutputKind int

const (
	OutputNumeric OutputKind = iota + 1
	OutputCategorical
)

func (k OutputKind) String() string {
	switch k {
	case OutputNumeric:
		return "numeric"
	case OutputCategorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// ClassifierOutput is a raw prediction: a numeric fertility value in [0,1]
// or a categorical level label. Kind says which field is meaningful.
type ClassifierOutput struct {
	Kind  OutputKind
	Value float64
	Label string
}

// NumericOutput builds a numeric classifier output.
func NumericOutput(v float64) ClassifierOutput {
	return ClassifierOutput{Kind: OutputNumeric, Value: v}
}

// CategoricalOutput builds a categorical classifier output.
func CategoricalOutput(label string) ClassifierOutput {
	return ClassifierOutput{Kind: OutputCategorical, Label: label}
}

// Classifier is a trained model that consumes a feature vector in
// models.FeatureSchema order, after scaling.
type Classifier interface {
	Predict(ctx context.Context, features []float64) (ClassifierOutput, error)
}

// ProbabilityEstimator is implemented by classifiers exposing class probabilities.
type ProbabilityEstimator interface {
	PredictProba(ctx context.Context, features []float64) ([]float64, error)
}

// FeatureImportancer is implemented by classifiers exposing feature
// importances aligned with models.FeatureSchema.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// OutputKinder is implemented by classifiers that declare their output kind
// up front. It is informational only; interpretation always follows the
// ClassifierOutput actually returned.
type OutputKinder interface {
	OutputKind() OutputKind
}

// Scaler transforms a raw feature vector before it reaches a classifier.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
}

// Model pairs a classifier with its optional scaler. Capabilities are probed
// once in NewModel; a Model is immutable afterwards and safe for concurrent use
// when its classifier is.
type Model struct {
	name        string
	classifier  Classifier
	scaler      Scaler
	proba       ProbabilityEstimator
	importances []float64
	kind        OutputKind
}

// NewModel wraps a classifier and optional scaler (nil means pass-through).
func NewModel(name string, classifier Classifier, scaler Scaler) (*Model, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}

	m := &Model{
		name:       name,
		classifier: classifier,
		scaler:     scaler,
	}

	if pe, ok := classifier.(ProbabilityEstimator); ok {
		m.proba = pe
	}
	if k, ok := classifier.(OutputKinder); ok {
		m.kind = k.OutputKind()
	}
	if fi, ok := classifier.(FeatureImportancer); ok {
		if imp := fi.FeatureImportances(); imp != nil {
			if len(imp) != models.NumFeatures {
				return nil, fmt.Errorf("feature importances have %d entries, want %d", len(imp), models.NumFeatures)
			}
			m.importances = append([]float64(nil), imp...)
		}
	}

	return m, nil
}

// Name identifies the model in logs.
func (m *Model) Name() string {
	return m.name
}

// HasProbabilities reports whether confidence comes from class probabilities.
func (m *Model) HasProbabilities() bool {
	return m.proba != nil
}

// OutputKind returns the declared output kind, or zero when unknown.
func (m *Model) OutputKind() OutputKind {
	return m.kind
}

// HasScaler reports whether features are scaled before inference.
func (m *Model) HasScaler() bool {
	return m.scaler != nil
}

// FeatureImportances returns a copy of the importance vector, or nil.
func (m *Model) FeatureImportances() []float64 {
	if m.importances == nil {
		return nil
	}
	return append([]float64(nil), m.importances...)
}

// Preprocess builds the model input vector for a sample.
func (m *Model) Preprocess(sample models.SoilSample) ([]float64, error) {
	features := sample.Vector()
	if m.scaler == nil {
		return features, nil
	}
	scaled, err := m.scaler.Transform(features)
	if err != nil {
		return nil, err
	}
	if len(scaled) != models.NumFeatures {
		return nil, fmt.Errorf("scaler returned %d features, want %d", len(scaled), models.NumFeatures)
	}
	return scaled, nil
}

// infer runs the model-backed path. Every failure, including a panic inside
// the classifier or scaler, comes back as *InferenceError.
func (m *Model) infer(ctx context.Context, sample models.SoilSample) (result models.PredictionResult, err error) {
	stage := StagePreprocess
	defer func() {
		if r := recover(); r != nil {
			result = models.PredictionResult{}
			err = &InferenceError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	features, err := m.Preprocess(sample)
	if err != nil {
		return models.PredictionResult{}, &InferenceError{Stage: stage, Err: err}
	}

	stage = StagePredict
	out, err := m.classifier.Predict(ctx, features)
	if err != nil {
		return models.PredictionResult{}, &InferenceError{Stage: stage, Err: err}
	}

	confidence := DefaultConfidence
	if m.proba != nil {
		stage = StageProba
		probs, err := m.proba.PredictProba(ctx, features)
		if err != nil {
			return models.PredictionResult{}, &InferenceError{Stage: stage, Err: err}
		}
		confidence, err = maxProbability(probs)
		if err != nil {
			return models.PredictionResult{}, &InferenceError{Stage: stage, Err: err}
		}
	}

	stage = StageInterpret
	level, score, err := interpret(out, confidence)
	if err != nil {
		return models.PredictionResult{}, &InferenceError{Stage: stage, Err: err}
	}

	stage = StageExplain
	reasons := explainModel(sample, level, confidence, m.importances)

	return models.PredictionResult{
		FertilityLevel:  level,
		Score:           score,
		Confidence:      &confidence,
		Reasons:         reasons,
		Recommendations: Recommend(sample, level),
		Engine:          models.EngineModel,
	}, nil
}

func maxProbability(probs []float64) (float64, error) {
	if len(probs) == 0 {
		return 0, errors.New("empty probability vector")
	}
	best := math.Inf(-1)
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, fmt.Errorf("probability %v outside [0,1]", p)
		}
		if p > best {
			best = p
		}
	}
	return best, nil
}

// interpret resolves a classifier output into a level and score.
func interpret(out ClassifierOutput, confidence float64) (models.FertilityLevel, int, error) {
	switch out.Kind {
	case OutputNumeric:
		p := out.Value
		if math.IsNaN(p) || p < 0 || p > 1 {
			return "", 0, fmt.Errorf("numeric prediction %v outside [0,1]", p)
		}
		level := models.FertilityLow
		switch {
		case p > 0.8:
			level = models.FertilityHigh
		case p > 0.6:
			level = models.FertilityMedium
		}
		return level, int(math.Round(p * 100)), nil

	case OutputCategorical:
		level, ok := models.ParseFertilityLevel(out.Label)
		if !ok {
			return "", 0, fmt.Errorf("unknown fertility label %q", out.Label)
		}
		return level, categoricalScore(level, confidence), nil

	default:
		return "", 0, fmt.Errorf("unknown classifier output kind %d", out.Kind)
	}
}

// categoricalScore maps confidence into the level's sub-range:
// High 75-100, Medium 50-75, Low 0-50.
func categoricalScore(level models.FertilityLevel, confidence float64) int {
	switch level {
	case models.FertilityHigh:
		return int(math.Round(75 + confidence*25))
	case models.FertilityMedium:
		return int(math.Round(50 + confidence*25))
	default:
		return int(math.Round(confidence * 50))
	}
}
