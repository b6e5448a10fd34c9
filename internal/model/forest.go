package model

import (
	"encoding/json"
	"fmt"
)

const (
	KindRandomForest = "random_forest"
	KindDecisionTree = "decision_tree"

	leaf = -1
)

// Tree is one fitted decision tree in array form: node i splits on Feature[i] at Threshold[i],
// rows with x <= threshold go to ChildrenLeft[i]. Leaves have ChildrenLeft[i] == -1 and carry
// per-class counts (or fractions) in Value[i].
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest averages the class probabilities of its trees. A decision tree is a forest of one.
type Forest struct {
	Kind        string    `json:"kind"`
	ClassLabels []int     `json:"classes"`
	Features    []string  `json:"feature_names"`
	Importances []float64 `json:"feature_importances"`
	Trees       []Tree    `json:"trees"`
}

func (f *Forest) Classes() []int {
	out := make([]int, len(f.ClassLabels))
	copy(out, f.ClassLabels)
	return out
}

func (f *Forest) FeatureNames() []string {
	out := make([]string, len(f.Features))
	copy(out, f.Features)
	return out
}

func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Importances))
	copy(out, f.Importances)
	return out
}

// PredictProba returns one probability per class, in Classes order.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(f.Features) {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrShapeMismatch, len(f.Features), len(x))
	}
	proba := make([]float64, len(f.ClassLabels))
	for ti := range f.Trees {
		p, err := f.Trees[ti].proba(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		for c := range proba {
			proba[c] += p[c]
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba, nil
}

// Predict returns the most probable class; ties go to the earlier class.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.ClassLabels[best], nil
}

func (t *Tree) proba(x []float64) ([]float64, error) {
	node := 0
	for steps := 0; steps <= len(t.ChildrenLeft); steps++ {
		if t.ChildrenLeft[node] == leaf {
			counts := t.Value[node]
			total := 0.0
			for _, v := range counts {
				total += v
			}
			out := make([]float64, len(counts))
			if total == 0 {
				return out, nil
			}
			for i, v := range counts {
				out[i] = v / total
			}
			return out, nil
		}
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return nil, fmt.Errorf("no leaf reached after %d steps", len(t.ChildrenLeft))
}

func (f *Forest) validate() error {
	switch f.Kind {
	case KindRandomForest, KindDecisionTree:
	default:
		return fmt.Errorf("unsupported model kind %q", f.Kind)
	}
	if len(f.ClassLabels) != 2 || f.ClassLabels[0] != 0 || f.ClassLabels[1] != 1 {
		return fmt.Errorf("model must be a binary classifier over classes [0 1], got %v", f.ClassLabels)
	}
	if len(f.Features) == 0 {
		return fmt.Errorf("model has no feature names")
	}
	if len(f.Importances) != len(f.Features) {
		return fmt.Errorf("model has %d features but %d importances", len(f.Features), len(f.Importances))
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}
	if f.Kind == KindDecisionTree && len(f.Trees) != 1 {
		return fmt.Errorf("decision tree must have exactly one tree, got %d", len(f.Trees))
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.Features), len(f.ClassLabels)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] == leaf {
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("leaf %d has %d class values, want %d", i, len(t.Value[i]), nClasses)
			}
			continue
		}
		if t.ChildrenLeft[i] <= i || t.ChildrenLeft[i] >= n || t.ChildrenRight[i] <= i || t.ChildrenRight[i] >= n {
			return fmt.Errorf("node %d has out of range children", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on unknown feature %d", i, t.Feature[i])
		}
	}
	return nil
}

func decodeForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
