package risk

import "math"

// Fixed explanation factors. Each raw input is clamped to its window and
// min-max normalized against it, so every normalized value lands in [0,1].
// Weights must sum to exactly 1.00.
const (
	weightOverdueRatio     = 0.48
	weightMaxDaysPastDue   = 0.27
	weightLateCount        = 0.15
	weightTotalOutstanding = 0.10

	windowMaxDaysPastDue   = 90.0
	windowLateCount        = 8.0
	windowTotalOutstanding = 500_000_000.0
)

// Factor codes, stable identifiers for downstream consumers.
const (
	FactorOverdueRatio     = "OVERDUE_RATIO"
	FactorMaxDaysPastDue   = "MAX_DAYS_PAST_DUE"
	FactorLateCount        = "LATE_COUNT"
	FactorTotalOutstanding = "TOTAL_OUTSTANDING"
)

// Score produces the explainable default probability for a metrics snapshot.
// It is independent of any trained model: the weights are fixed business
// constants, not learned. All inputs are clamped, so Score never fails.
//
// The weighted factor sum lands in [0,1]; stretching it through
// sigmoid(4*sum - 2) spreads mid-range scores into a more discriminative
// probability curve before tier mapping.
func Score(m Metrics) *Prediction {
	factors := []FactorContribution{
		factor(FactorOverdueRatio, "Overdue balance ratio",
			m.OverdueRatio, 1.0, weightOverdueRatio),
		factor(FactorMaxDaysPastDue, "Max days past due",
			float64(m.MaxDaysPastDue), windowMaxDaysPastDue, weightMaxDaysPastDue),
		factor(FactorLateCount, "Late payment count",
			float64(m.LateCount), windowLateCount, weightLateCount),
		factor(FactorTotalOutstanding, "Total outstanding balance",
			m.TotalOutstanding, windowTotalOutstanding, weightTotalOutstanding),
	}

	var weighted float64
	for _, f := range factors {
		weighted += f.Contribution
	}

	logit := weighted*4 - 2
	probability := round4(clamp01(scoreSigmoid(logit)))
	signal := ResolveSignal(probability)

	return &Prediction{
		Probability:    probability,
		Signal:         signal,
		Factors:        factors,
		Recommendation: Recommendation(signal),
	}
}

// factor builds one contribution: clamp raw to [0,window], normalize, weight.
func factor(code, label string, raw, window, weight float64) FactorContribution {
	normalized := clamp01(clamp(raw, 0, window) / window)
	return FactorContribution{
		Code:         code,
		Label:        label,
		RawValue:     raw,
		Normalized:   normalized,
		Weight:       weight,
		Contribution: round4(normalized * weight),
	}
}

// scoreSigmoid is the plain logistic function. The logit here is confined to
// [-2,2] by construction, so no saturation guard is needed.
func scoreSigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// round4 rounds to 4 decimal places, half away from zero.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
