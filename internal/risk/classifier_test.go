package risk

import (
	"testing"
)

func rule(name string, level Level, days int, ratio float64, late int, mode MatchMode) *Rule {
	return &Rule{
		ID:              "rule_" + name,
		Name:            name,
		Level:           level,
		MinOverdueDays:  days,
		MinOverdueRatio: ratio,
		MinLateCount:    late,
		MatchMode:       mode,
		Active:          true,
	}
}

func TestClassifyNoRules(t *testing.T) {
	m := Metrics{OverdueRatio: 0.99, MaxDaysPastDue: 120, LateCount: 9}

	if got := Classify(m, nil); got != LevelLow {
		t.Errorf("Classify with no rules = %s, want %s", got, LevelLow)
	}
	if got := Classify(m, []*Rule{}); got != LevelLow {
		t.Errorf("Classify with empty rules = %s, want %s", got, LevelLow)
	}
}

func TestClassifyMostSevereMatchWins(t *testing.T) {
	// Listed least severe first; ordering must not matter.
	rules := []*Rule{
		rule("mild", LevelMedium, 10, 0, 0, MatchAny),
		rule("bad", LevelHigh, 30, 0, 0, MatchAny),
		rule("worst", LevelVeryHigh, 60, 0, 0, MatchAny),
	}

	tests := []struct {
		days int
		want Level
	}{
		{5, LevelLow},
		{10, LevelMedium},
		{30, LevelHigh},
		{60, LevelVeryHigh},
		{365, LevelVeryHigh},
	}

	for _, tc := range tests {
		m := Metrics{MaxDaysPastDue: tc.days}
		if got := Classify(m, rules); got != tc.want {
			t.Errorf("Classify(days=%d) = %s, want %s", tc.days, got, tc.want)
		}
	}
}

func TestClassifySkipsInactiveAndNilRules(t *testing.T) {
	inactive := rule("off", LevelVeryHigh, 1, 0, 0, MatchAny)
	inactive.Active = false

	rules := []*Rule{
		nil,
		inactive,
		rule("on", LevelMedium, 1, 0, 0, MatchAny),
	}

	m := Metrics{MaxDaysPastDue: 30}
	if got := Classify(m, rules); got != LevelMedium {
		t.Errorf("Classify = %s, want %s (inactive rule must not fire)", got, LevelMedium)
	}
}

func TestClassifyMatchModes(t *testing.T) {
	anyRule := rule("any", LevelHigh, 30, 0.5, 3, MatchAny)
	allRule := rule("all", LevelHigh, 30, 0.5, 3, MatchAll)

	// Only one condition holds
	partial := Metrics{MaxDaysPastDue: 45}

	if got := Classify(partial, []*Rule{anyRule}); got != LevelHigh {
		t.Errorf("MatchAny with one condition = %s, want %s", got, LevelHigh)
	}
	if got := Classify(partial, []*Rule{allRule}); got != LevelLow {
		t.Errorf("MatchAll with one condition = %s, want %s", got, LevelLow)
	}

	// All conditions hold
	full := Metrics{MaxDaysPastDue: 45, OverdueRatio: 0.8, LateCount: 4}
	if got := Classify(full, []*Rule{allRule}); got != LevelHigh {
		t.Errorf("MatchAll with all conditions = %s, want %s", got, LevelHigh)
	}
}

func TestClassifyThresholdsAreInclusive(t *testing.T) {
	r := rule("exact", LevelHigh, 30, 0.5, 3, MatchAll)
	m := Metrics{MaxDaysPastDue: 30, OverdueRatio: 0.5, LateCount: 3}

	if got := Classify(m, []*Rule{r}); got != LevelHigh {
		t.Errorf("Classify at exact thresholds = %s, want %s", got, LevelHigh)
	}
}

func TestClassifyZeroThresholdRuleAlwaysFires(t *testing.T) {
	// A rule with all-zero thresholds matches every snapshot under MatchAny.
	r := rule("floor", LevelMedium, 0, 0, 0, MatchAny)

	if got := Classify(Metrics{}, []*Rule{r}); got != LevelMedium {
		t.Errorf("Classify(zero metrics) = %s, want %s", got, LevelMedium)
	}
}

func TestLevelSeverity(t *testing.T) {
	order := []Level{LevelLow, LevelMedium, LevelHigh, LevelVeryHigh}
	for i := 1; i < len(order); i++ {
		if order[i].Severity() <= order[i-1].Severity() {
			t.Errorf("Severity(%s) = %d not above Severity(%s) = %d",
				order[i], order[i].Severity(), order[i-1], order[i-1].Severity())
		}
	}

	if got := Level("garbage").Severity(); got != 0 {
		t.Errorf("Severity(garbage) = %d, want 0", got)
	}
}
