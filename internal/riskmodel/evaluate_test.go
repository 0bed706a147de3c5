package riskmodel

import (
	"errors"
	"math"
	"testing"
)

// identityModel scores sigmoid(k*x) over a single raw feature.
func identityModel(k float64) *Model {
	return &Model{
		Coefficients: []float64{k},
		Means:        []float64{0},
		Scales:       []float64{1},
		FeatureNames: []string{"f0"},
	}
}

func TestEvaluatePerfectClassifier(t *testing.T) {
	samples := []Sample{
		{Features: []float64{2}, Label: 1},
		{Features: []float64{1}, Label: 1},
		{Features: []float64{-1}, Label: 0},
		{Features: []float64{-2}, Label: 0},
	}

	m, err := Evaluate(identityModel(4), samples)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if m.Accuracy != 1 || m.Precision != 1 || m.Recall != 1 || m.F1 != 1 {
		t.Errorf("perfect classifier scored %+v, want all 1", m)
	}
	if m.AUC != 1 {
		t.Errorf("AUC = %v, want 1", m.AUC)
	}
	if m.BrierScore >= 0.05 {
		t.Errorf("BrierScore = %v, want small for confident correct predictions", m.BrierScore)
	}
}

func TestEvaluateInvertedClassifier(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1}, Label: 0},
		{Features: []float64{-1}, Label: 1},
	}

	m, err := Evaluate(identityModel(4), samples)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0", m.Accuracy)
	}
	if m.AUC != 0 {
		t.Errorf("AUC = %v, want 0", m.AUC)
	}
}

func TestEvaluateSingleClassAUC(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1}, Label: 1},
		{Features: []float64{2}, Label: 1},
	}

	m, err := Evaluate(identityModel(4), samples)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.AUC != 0.5 {
		t.Errorf("single-class AUC = %v, want 0.5", m.AUC)
	}
}

func TestEvaluateTiedProbabilities(t *testing.T) {
	// A zero-coefficient model scores everything at exactly 0.5: every
	// prediction ties, mid-ranking must yield a coin-flip AUC.
	samples := []Sample{
		{Features: []float64{5}, Label: 1},
		{Features: []float64{3}, Label: 1},
		{Features: []float64{-5}, Label: 0},
		{Features: []float64{-3}, Label: 0},
	}

	m, err := Evaluate(identityModel(0), samples)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.AUC != 0.5 {
		t.Errorf("all-ties AUC = %v, want 0.5", m.AUC)
	}
	// p = 0.5 predicts positive for every sample.
	if m.Recall != 1 {
		t.Errorf("Recall = %v, want 1", m.Recall)
	}
	if m.Precision != 0.5 {
		t.Errorf("Precision = %v, want 0.5", m.Precision)
	}
	if m.BrierScore != 0.25 {
		t.Errorf("BrierScore = %v, want 0.25", m.BrierScore)
	}
}

func TestEvaluateMixedOutcome(t *testing.T) {
	// Three of four correct at the 0.5 threshold.
	samples := []Sample{
		{Features: []float64{2}, Label: 1},
		{Features: []float64{1}, Label: 1},
		{Features: []float64{0.5}, Label: 0}, // false positive
		{Features: []float64{-2}, Label: 0},
	}

	m, err := Evaluate(identityModel(4), samples)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Accuracy != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", m.Accuracy)
	}
	if math.Abs(m.Precision-2.0/3.0) > 1e-12 {
		t.Errorf("Precision = %v, want 2/3", m.Precision)
	}
	if m.Recall != 1 {
		t.Errorf("Recall = %v, want 1", m.Recall)
	}
	if math.Abs(m.F1-0.8) > 1e-12 {
		t.Errorf("F1 = %v, want 0.8", m.F1)
	}
	// Ranking is still perfect: both positives outrank both negatives.
	if m.AUC != 1 {
		t.Errorf("AUC = %v, want 1", m.AUC)
	}
}

func TestEvaluateEmptySet(t *testing.T) {
	if _, err := Evaluate(identityModel(1), nil); !errors.Is(err, ErrInvalidDataset) {
		t.Errorf("Evaluate(nil) error = %v, want ErrInvalidDataset", err)
	}
}

func TestEvaluateDimensionMismatch(t *testing.T) {
	samples := []Sample{{Features: []float64{1, 2}, Label: 1}}
	if _, err := Evaluate(identityModel(1), samples); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Evaluate error = %v, want ErrDimensionMismatch", err)
	}
}
