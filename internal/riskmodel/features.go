// Package riskmodel implements the learned default-probability model:
// feature engineering, logistic-regression training via gradient descent,
// prediction, and statistical evaluation. The companion rule-based and
// explainable scorers live in internal/risk; this package covers the
// trained path only.
package riskmodel

import (
	"math"
	"time"

	"github.com/ledgerline/dunning/internal/risk"
)

// FeatureCount is the fixed length of every feature vector.
const FeatureCount = 9

// FeatureNames labels each position of the feature vector, in order.
var FeatureNames = []string{
	"total_outstanding_log",
	"overdue_amount_log",
	"overdue_ratio",
	"max_days_past_due",
	"late_count",
	"month_sin",
	"month_cos",
	"weekday_sin",
	"weekday_cos",
}

// BuildFeatures maps a metrics snapshot and its as-of date to the model's
// feature vector. Monetary amounts are log1p-compressed, the calendar is
// cyclically encoded so December/January and Saturday/Sunday sit next to
// each other. Weekday numbering follows Go's time.Weekday (Sunday = 0).
func BuildFeatures(m risk.Metrics, asOf time.Time) []float64 {
	monthAngle := 2 * math.Pi * float64(asOf.Month()-1) / 12
	weekdayAngle := 2 * math.Pi * float64(asOf.Weekday()) / 7

	return []float64{
		math.Log1p(math.Max(0, m.TotalOutstanding)),
		math.Log1p(math.Max(0, m.OverdueAmount)),
		math.Min(1, math.Max(0, m.OverdueRatio)),
		math.Max(0, float64(m.MaxDaysPastDue)),
		math.Max(0, float64(m.LateCount)),
		math.Sin(monthAngle),
		math.Cos(monthAngle),
		math.Sin(weekdayAngle),
		math.Cos(weekdayAngle),
	}
}
