// Package risk implements customer credit-risk evaluation for receivables.
//
// Every customer is evaluated from a fresh snapshot of ledger-derived metrics
// (outstanding balance, overdue amounts, payment lateness). Two independent
// verdicts are produced: a rule-based severity level for collection policy,
// and an explainable probability score built from 4 weighted factors. Both
// are pure computations; persistence of rules and assessments lives behind
// the Store interfaces.
package risk

import (
	"context"
	"time"
)

// Metrics is a per-customer snapshot of receivables health, computed by the
// reporting layer as of a specific date. It carries no identity and is never
// persisted by this package.
type Metrics struct {
	TotalOutstanding float64 `json:"totalOutstanding"`
	OverdueAmount    float64 `json:"overdueAmount"`
	OverdueRatio     float64 `json:"overdueRatio"` // expected in [0,1], clamped defensively
	MaxDaysPastDue   int     `json:"maxDaysPastDue"`
	LateCount        int     `json:"lateCount"`
}

// Level is the rule-driven risk severity of a customer.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// Severity returns the ordinal rank of a level (higher is worse).
// Unknown levels rank below LevelLow so corrupt rules can never win.
func (l Level) Severity() int {
	switch l {
	case LevelVeryHigh:
		return 4
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	default:
		return 0
	}
}

// Signal is a coarse probability bucket used for dashboards and escalation.
type Signal string

const (
	SignalLow      Signal = "LOW"
	SignalMedium   Signal = "MEDIUM"
	SignalHigh     Signal = "HIGH"
	SignalCritical Signal = "CRITICAL"
)

// Signal tier thresholds. ResolveSignal is the single place probability is
// mapped to a tier; the model package must use it too so the cutoffs cannot
// drift apart.
const (
	SignalCriticalThreshold = 0.80
	SignalHighThreshold     = 0.60
	SignalMediumThreshold   = 0.35
)

// ResolveSignal maps a default probability to its signal tier.
func ResolveSignal(probability float64) Signal {
	switch {
	case probability >= SignalCriticalThreshold:
		return SignalCritical
	case probability >= SignalHighThreshold:
		return SignalHigh
	case probability >= SignalMediumThreshold:
		return SignalMedium
	default:
		return SignalLow
	}
}

// recommendations holds the advisory text shown to collectors per signal
// tier. Business-owned copy, not derived from the score.
var recommendations = map[Signal]string{
	SignalCritical: "Escalate immediately: freeze further credit, assign a senior collector, and prepare a formal demand letter.",
	SignalHigh:     "Contact the customer within 2 business days and negotiate a payment plan before the balance ages further.",
	SignalMedium:   "Schedule a reminder call this week and review recent invoices for disputes.",
	SignalLow:      "No action needed beyond the standard dunning cycle.",
}

// Recommendation returns the advisory text for a signal tier.
func Recommendation(s Signal) string {
	return recommendations[s]
}

// FactorContribution explains one weighted factor of a score.
type FactorContribution struct {
	Code         string  `json:"code"`
	Label        string  `json:"label"`
	RawValue     float64 `json:"rawValue"`
	Normalized   float64 `json:"normalized"` // in [0,1]
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // round4(normalized * weight)
}

// Prediction is the explainable score for one customer snapshot.
type Prediction struct {
	Probability    float64              `json:"probability"` // in [0,1], 4 decimals
	Signal         Signal               `json:"signal"`
	Factors        []FactorContribution `json:"factors"`
	Recommendation string               `json:"recommendation"`
}

// Assessment is one persisted evaluation: rule level plus explainable score.
type Assessment struct {
	ID             string               `json:"id"`
	CustomerKey    string               `json:"customerKey"`
	Level          Level                `json:"level"`
	Probability    float64              `json:"probability"`
	Signal         Signal               `json:"signal"`
	Factors        []FactorContribution `json:"factors"`
	Recommendation string               `json:"recommendation"`
	EvaluatedAt    time.Time            `json:"evaluatedAt"`
}

// AssessmentStore persists assessments for the audit trail.
type AssessmentStore interface {
	Record(ctx context.Context, a *Assessment) error
	ListByCustomer(ctx context.Context, customerKey string, limit int) ([]*Assessment, error)
}
