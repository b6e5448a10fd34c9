// Package inference scales an encoded feature vector and runs the classifier on it.
package inference

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/Skufu/HeartRisk/internal/features"
	"github.com/Skufu/HeartRisk/internal/model"
)

// InferenceError wraps anything that went wrong while scaling or predicting one request.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Pipeline is safe for concurrent use; it only reads the artifacts.
type Pipeline struct {
	classifier model.Classifier
	scaler     *model.Scaler
}

func New(a *model.Artifacts) (*Pipeline, error) {
	if a == nil || a.Classifier == nil || a.Scaler == nil {
		return nil, fmt.Errorf("%w: classifier and scaler must both be loaded", model.ErrArtifactMissing)
	}
	return &Pipeline{classifier: a.Classifier, scaler: a.Scaler}, nil
}

// Predict scales the continuous columns of v and classifies the result.
func (p *Pipeline) Predict(v features.Vector) (Result, error) {
	scaled, err := p.Scale(v)
	if err != nil {
		return Result{}, &InferenceError{Stage: "scale", Err: err}
	}

	x := scaled.Values()
	label, err := p.classifier.Predict(x)
	if err != nil {
		return Result{}, &InferenceError{Stage: "predict", Err: err}
	}
	proba, err := p.classifier.PredictProba(x)
	if err != nil {
		return Result{}, &InferenceError{Stage: "predict_proba", Err: err}
	}

	pos := slices.Index(p.classifier.Classes(), int(HighRisk))
	if pos < 0 || pos >= len(proba) {
		return Result{}, &InferenceError{Stage: "predict_proba", Err: fmt.Errorf("no probability for the positive class")}
	}

	switch Label(label) {
	case LowRisk, HighRisk:
	default:
		return Result{}, &InferenceError{Stage: "predict", Err: fmt.Errorf("unexpected class %d", label)}
	}

	return Result{Label: Label(label), Probability: proba[pos]}, nil
}

// Scale returns a copy of v with the scaler's columns standardised in place. The column order must
// match the classifier's training order exactly.
func (p *Pipeline) Scale(v features.Vector) (features.Vector, error) {
	names := v.Names()
	if !slices.Equal(names, p.classifier.FeatureNames()) {
		return features.Vector{}, fmt.Errorf("%w: vector columns %v do not match model columns %v",
			model.ErrShapeMismatch, names, p.classifier.FeatureNames())
	}

	idx := make([]int, len(p.scaler.FeatureNames))
	continuous := make([]float64, len(p.scaler.FeatureNames))
	for i, name := range p.scaler.FeatureNames {
		idx[i] = v.Index(name)
		if idx[i] < 0 {
			return features.Vector{}, fmt.Errorf("%w: scaler column %q not in vector", model.ErrShapeMismatch, name)
		}
		continuous[i], _ = v.Get(name)
	}

	standardised, err := p.scaler.Transform(continuous)
	if err != nil {
		return features.Vector{}, err
	}

	values := v.Values()
	for i, j := range idx {
		values[j] = standardised[i]
	}
	return features.NewVector(names, values)
}

// Importance is one model feature with its reported importance.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureInsights pairs feature names with importances, most important first. Ties keep model
// order.
func (p *Pipeline) FeatureInsights() ([]Importance, error) {
	return SortedImportances(p.classifier.FeatureNames(), p.classifier.FeatureImportances())
}

func SortedImportances(names []string, scores []float64) ([]Importance, error) {
	if len(names) != len(scores) {
		return nil, errors.New("feature names and importances differ in length")
	}
	out := make([]Importance, len(names))
	for i := range names {
		out[i] = Importance{Feature: names[i], Importance: scores[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
