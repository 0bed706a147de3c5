package riskmodel

import (
	"errors"
	"fmt"
	"math"
)

// scaleEpsilon is the floor below which a standardization scale is treated
// as degenerate (constant feature).
const scaleEpsilon = 1e-9

// ErrDimensionMismatch is returned when a feature vector's length does not
// match the model's coefficient count.
var ErrDimensionMismatch = errors.New("feature vector length does not match model")

// Model is an immutable fitted logistic-regression snapshot. Train always
// returns a fresh value; nothing mutates a model after that, so concurrent
// readers need no synchronization.
type Model struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Means        []float64 `json:"means"`
	Scales       []float64 `json:"scales"`
	FeatureNames []string  `json:"featureNames"`
}

// Predict returns the default probability for a raw (unstandardized)
// feature vector.
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: got %d features, model has %d coefficients",
			ErrDimensionMismatch, len(features), len(m.Coefficients))
	}

	z := m.Intercept
	for j, x := range features {
		z += m.Coefficients[j] * m.standardize(j, x)
	}
	return sigmoid(z), nil
}

// standardize applies the stored per-feature standardization. A degenerate
// scale means the feature was constant during training; center only.
func (m *Model) standardize(j int, x float64) float64 {
	if m.Scales[j] <= scaleEpsilon {
		return x - m.Means[j]
	}
	return (x - m.Means[j]) / m.Scales[j]
}

// sigmoid is the logistic function with hard saturation so extreme logits
// can never overflow into NaN or Inf.
func sigmoid(x float64) float64 {
	if x >= 35 {
		return 1.0
	}
	if x <= -35 {
		return 0.0
	}
	return 1 / (1 + math.Exp(-x))
}
