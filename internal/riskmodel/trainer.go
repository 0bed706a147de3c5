package riskmodel

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Training defaults and numeric guards.
const (
	DefaultLearningRate  = 0.08
	DefaultMaxIterations = 800

	convergenceTolerance = 1e-7
	lossEpsilon          = 1e-9
)

// ErrInvalidDataset is returned when the training set violates the
// structural contract (empty, or ragged/zero-length feature vectors).
var ErrInvalidDataset = errors.New("training dataset invalid")

// Sample is one labeled training example: the feature vector of a historical
// customer snapshot joined with its realized outcome (1 = the debt became
// materially overdue within the label horizon, 0 = it did not). The label
// horizon is a policy decision made by the training-data assembler.
type Sample struct {
	SnapshotDate time.Time `json:"snapshotDate"`
	CustomerKey  string    `json:"customerKey"`
	Features     []float64 `json:"features"`
	Label        float64   `json:"label"` // 0.0 or 1.0
}

// TrainConfig holds the gradient-descent hyperparameters.
// Zero values fall back to the defaults; a negative L2 penalty is clamped to 0.
type TrainConfig struct {
	LearningRate  float64 `json:"learningRate"`
	MaxIterations int     `json:"maxIterations"`
	L2Penalty     float64 `json:"l2Penalty"`
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.L2Penalty < 0 {
		c.L2Penalty = 0
	}
	return c
}

// Train fits a logistic-regression model on the samples using batch gradient
// descent over standardized features, with L2 applied to coefficients only.
// It is a pure CPU-bound computation with no cancellation point: run it off
// any latency-sensitive path and wrap it in a cancellable unit of work if
// the caller needs to abandon it.
func Train(samples []Sample, cfg TrainConfig) (*Model, error) {
	n := len(samples)
	if n == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidDataset)
	}
	d := len(samples[0].Features)
	if d == 0 {
		return nil, fmt.Errorf("%w: zero-length feature vector", ErrInvalidDataset)
	}
	for i, s := range samples {
		if len(s.Features) != d {
			return nil, fmt.Errorf("%w: sample %d has %d features, expected %d",
				ErrInvalidDataset, i, len(s.Features), d)
		}
	}

	means, scales := standardizationParams(samples, d)

	// Pre-standardize once; the descent loop reads this matrix only.
	standardized := make([][]float64, n)
	for i, s := range samples {
		row := make([]float64, d)
		for j, x := range s.Features {
			row[j] = (x - means[j]) / scales[j] // scales are floored, never zero
		}
		standardized[i] = row
	}

	cfg = cfg.withDefaults()
	coef := make([]float64, d)
	gradCoef := make([]float64, d)
	intercept := 0.0
	prevLoss := math.Inf(1)

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		gradIntercept := 0.0
		totalLoss := 0.0
		for j := range gradCoef {
			gradCoef[j] = 0
		}

		for i, s := range samples {
			row := standardized[i]
			z := intercept
			for j := range row {
				z += coef[j] * row[j]
			}
			p := sigmoid(z)

			err := p - s.Label
			gradIntercept += err
			for j := range row {
				gradCoef[j] += err * row[j]
			}

			totalLoss -= s.Label*math.Log(p+lossEpsilon) +
				(1-s.Label)*math.Log(1-p+lossEpsilon)
		}

		nf := float64(n)
		intercept -= cfg.LearningRate * gradIntercept / nf
		for j := range coef {
			coef[j] -= cfg.LearningRate * (gradCoef[j]/nf + cfg.L2Penalty*coef[j])
		}

		avgLoss := totalLoss / nf
		if math.Abs(prevLoss-avgLoss) < convergenceTolerance {
			break
		}
		prevLoss = avgLoss
	}

	names := make([]string, d)
	if d == FeatureCount {
		copy(names, FeatureNames)
	} else {
		for j := range names {
			names[j] = fmt.Sprintf("f%d", j)
		}
	}

	return &Model{
		Intercept:    intercept,
		Coefficients: coef,
		Means:        means,
		Scales:       scales,
		FeatureNames: names,
	}, nil
}

// standardizationParams computes per-feature population mean and standard
// deviation. Scales below scaleEpsilon are floored to 1 so a constant
// feature never divides by zero.
func standardizationParams(samples []Sample, d int) (means, scales []float64) {
	n := float64(len(samples))
	means = make([]float64, d)
	scales = make([]float64, d)

	for _, s := range samples {
		for j, x := range s.Features {
			means[j] += x
		}
	}
	for j := range means {
		means[j] /= n
	}

	for _, s := range samples {
		for j, x := range s.Features {
			diff := x - means[j]
			scales[j] += diff * diff
		}
	}
	for j := range scales {
		std := math.Sqrt(scales[j] / n)
		if std < scaleEpsilon {
			std = 1
		}
		scales[j] = std
	}
	return means, scales
}
