// Package model loads the artifacts exported by the training notebook: the fitted classifier and
// the scaler for its continuous inputs. Both are read once at startup and never mutated.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactMissing means a model or scaler file is absent. The service must not start.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrShapeMismatch means a vector does not line up with what an artifact was fitted on.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Classifier is a fitted binary classifier over a fixed, ordered feature list.
type Classifier interface {
	Predict(x []float64) (int, error)
	PredictProba(x []float64) ([]float64, error)
	Classes() []int
	FeatureNames() []string
	FeatureImportances() []float64
}

// Artifacts is the process-wide, read-only pair used for every prediction.
type Artifacts struct {
	Classifier Classifier
	Scaler     *Scaler
}

func LoadClassifier(path string) (Classifier, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	f, err := decodeForest(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return f, nil
}

// LoadArtifacts loads both files. A missing file is reported as ErrArtifactMissing naming both
// paths so the operator sees what is expected.
func LoadArtifacts(modelPath, scalerPath string) (*Artifacts, error) {
	classifier, err := LoadClassifier(modelPath)
	if err != nil {
		return nil, describeMissing(err, modelPath, scalerPath)
	}
	scaler, err := LoadScaler(scalerPath)
	if err != nil {
		return nil, describeMissing(err, modelPath, scalerPath)
	}
	return &Artifacts{Classifier: classifier, Scaler: scaler}, nil
}

func describeMissing(err error, modelPath, scalerPath string) error {
	if errors.Is(err, ErrArtifactMissing) {
		return fmt.Errorf("%w; ensure %q and %q exist", err, modelPath, scalerPath)
	}
	return err
}
