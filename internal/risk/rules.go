package risk

import (
	"context"
	"errors"
	"time"
)

// MatchMode controls how a rule's threshold conditions combine.
type MatchMode string

const (
	// MatchAny fires when at least one condition holds (the default).
	MatchAny MatchMode = "any"
	// MatchAll fires only when every condition holds.
	MatchAll MatchMode = "all"
)

// Rule is one administered severity rule. Rules are owned by the collections
// team; this package only reads a snapshot of them per classification.
type Rule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Level           Level     `json:"level"`
	MinOverdueDays  int       `json:"minOverdueDays"`
	MinOverdueRatio float64   `json:"minOverdueRatio"`
	MinLateCount    int       `json:"minLateCount"`
	MatchMode       MatchMode `json:"matchMode"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// matches reports whether the rule's predicate holds for the metrics.
func (r *Rule) matches(m Metrics) bool {
	days := m.MaxDaysPastDue >= r.MinOverdueDays
	ratio := m.OverdueRatio >= r.MinOverdueRatio
	late := m.LateCount >= r.MinLateCount

	if r.MatchMode == MatchAll {
		return days && ratio && late
	}
	return days || ratio || late
}

// ErrRuleNotFound is returned when a rule ID does not exist.
var ErrRuleNotFound = errors.New("risk rule not found")

// RuleStore persists severity rules.
type RuleStore interface {
	Create(ctx context.Context, rule *Rule) error
	Get(ctx context.Context, id string) (*Rule, error)
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Rule, error)
}
