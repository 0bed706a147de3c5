package risk

import (
	"math"
	"testing"
)

func TestScoreSaturatedSnapshot(t *testing.T) {
	// Every factor at or beyond its window: weighted sum is exactly 1,
	// so the probability is sigmoid(2) rounded to 4 decimals.
	m := Metrics{
		TotalOutstanding: 600_000_000,
		OverdueAmount:    600_000_000,
		OverdueRatio:     1.0,
		MaxDaysPastDue:   120,
		LateCount:        10,
	}

	pred := Score(m)
	if pred.Probability != 0.8808 {
		t.Errorf("Probability = %v, want 0.8808", pred.Probability)
	}
	if pred.Signal != SignalCritical {
		t.Errorf("Signal = %s, want %s", pred.Signal, SignalCritical)
	}
	if pred.Recommendation != Recommendation(SignalCritical) {
		t.Error("Recommendation does not match signal tier")
	}
}

func TestScoreCleanSnapshot(t *testing.T) {
	// All zero factors: probability is sigmoid(-2) rounded to 4 decimals.
	pred := Score(Metrics{})
	if pred.Probability != 0.1192 {
		t.Errorf("Probability = %v, want 0.1192", pred.Probability)
	}
	if pred.Signal != SignalLow {
		t.Errorf("Signal = %s, want %s", pred.Signal, SignalLow)
	}
}

func TestScoreNegativeInputsClampToZero(t *testing.T) {
	dirty := Score(Metrics{
		TotalOutstanding: -100,
		OverdueAmount:    -50,
		OverdueRatio:     -0.3,
		MaxDaysPastDue:   -7,
		LateCount:        -2,
	})
	clean := Score(Metrics{})

	if dirty.Probability != clean.Probability {
		t.Errorf("negative inputs scored %v, want %v (same as zero)",
			dirty.Probability, clean.Probability)
	}
}

func TestScoreOverdueRatioClampsToOne(t *testing.T) {
	capped := Score(Metrics{OverdueRatio: 1.0})
	over := Score(Metrics{OverdueRatio: 3.5})

	if over.Probability != capped.Probability {
		t.Errorf("ratio 3.5 scored %v, want %v (clamped to 1)",
			over.Probability, capped.Probability)
	}
}

func TestScoreFactors(t *testing.T) {
	m := Metrics{
		TotalOutstanding: 250_000_000, // half the window
		OverdueRatio:     0.5,
		MaxDaysPastDue:   45, // half the window
		LateCount:        4,  // half the window
	}

	pred := Score(m)
	if len(pred.Factors) != 4 {
		t.Fatalf("got %d factors, want 4", len(pred.Factors))
	}

	var weightSum float64
	for _, f := range pred.Factors {
		weightSum += f.Weight
		if f.Normalized < 0 || f.Normalized > 1 {
			t.Errorf("factor %s normalized = %v, out of [0,1]", f.Code, f.Normalized)
		}
		want := math.Round(f.Normalized*f.Weight*10000) / 10000
		if f.Contribution != want {
			t.Errorf("factor %s contribution = %v, want %v", f.Code, f.Contribution, want)
		}
	}
	if math.Abs(weightSum-1.0) > 1e-12 {
		t.Errorf("weights sum to %v, want 1.0", weightSum)
	}

	// Half of every window means every normalized value is 0.5
	for _, f := range pred.Factors {
		if f.Normalized != 0.5 {
			t.Errorf("factor %s normalized = %v, want 0.5", f.Code, f.Normalized)
		}
	}
}

func TestScoreMonotonicInOverdueRatio(t *testing.T) {
	prev := -1.0
	for ratio := 0.0; ratio <= 1.0; ratio += 0.1 {
		p := Score(Metrics{OverdueRatio: ratio}).Probability
		if p < prev {
			t.Fatalf("probability decreased from %v to %v at ratio %v", prev, p, ratio)
		}
		prev = p
	}
}

func TestScoreProbabilityHasFourDecimals(t *testing.T) {
	for _, m := range []Metrics{
		{},
		{OverdueRatio: 0.123456},
		{MaxDaysPastDue: 17, LateCount: 3},
		{TotalOutstanding: 98765.4321, OverdueRatio: 0.777},
	} {
		p := Score(m).Probability
		if p != math.Round(p*10000)/10000 {
			t.Errorf("probability %v is not rounded to 4 decimals", p)
		}
	}
}

func TestResolveSignalBoundaries(t *testing.T) {
	tests := []struct {
		probability float64
		want        Signal
	}{
		{0.0, SignalLow},
		{0.3499, SignalLow},
		{0.35, SignalMedium},
		{0.5999, SignalMedium},
		{0.60, SignalHigh},
		{0.7999, SignalHigh},
		{0.80, SignalCritical},
		{1.0, SignalCritical},
	}

	for _, tc := range tests {
		if got := ResolveSignal(tc.probability); got != tc.want {
			t.Errorf("ResolveSignal(%v) = %s, want %s", tc.probability, got, tc.want)
		}
	}
}

func TestRecommendationCoversAllSignals(t *testing.T) {
	for _, s := range []Signal{SignalLow, SignalMedium, SignalHigh, SignalCritical} {
		if Recommendation(s) == "" {
			t.Errorf("no recommendation for signal %s", s)
		}
	}
}
