package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerline/dunning/internal/idgen"
	"github.com/ledgerline/dunning/internal/metrics"
	"github.com/ledgerline/dunning/internal/traces"
)

// Broadcaster pushes completed assessments to live subscribers.
// Implemented by the realtime hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastAssessment(a *Assessment)
}

// Service evaluates customers against the administered rule set and the
// explainable scorer, recording every assessment for the audit trail.
type Service struct {
	rules       RuleStore
	assessments AssessmentStore
	broadcaster Broadcaster
}

// NewService creates a risk evaluation service.
func NewService(rules RuleStore, assessments AssessmentStore) *Service {
	return &Service{rules: rules, assessments: assessments}
}

// WithBroadcaster attaches a realtime broadcaster.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

// Evaluate classifies and scores one customer snapshot.
// Scoring itself cannot fail; only a rule-store failure is surfaced.
func (s *Service) Evaluate(ctx context.Context, customerKey string, m Metrics) (*Assessment, error) {
	ctx, span := traces.StartSpan(ctx, "risk.Evaluate", traces.CustomerKey(customerKey))
	defer span.End()

	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk rules: %w", err)
	}

	level := Classify(m, rules)
	pred := Score(m)
	span.SetAttributes(traces.Signal(string(pred.Signal)))

	assessment := &Assessment{
		ID:             idgen.WithPrefix("ra_"),
		CustomerKey:    customerKey,
		Level:          level,
		Probability:    pred.Probability,
		Signal:         pred.Signal,
		Factors:        pred.Factors,
		Recommendation: pred.Recommendation,
		EvaluatedAt:    time.Now(),
	}

	metrics.AssessmentsTotal.WithLabelValues(string(pred.Signal)).Inc()
	metrics.ClassificationsTotal.WithLabelValues(string(level)).Inc()

	// Persist asynchronously (best-effort audit trail)
	if s.assessments != nil {
		go func() {
			_ = s.assessments.Record(context.Background(), assessment)
		}()
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAssessment(assessment)
	}

	return assessment, nil
}

// History returns the most recent assessments for a customer.
func (s *Service) History(ctx context.Context, customerKey string, limit int) ([]*Assessment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.assessments.ListByCustomer(ctx, customerKey, limit)
}

// Rules returns the current rule snapshot.
func (s *Service) Rules(ctx context.Context) ([]*Rule, error) {
	return s.rules.List(ctx)
}

// CreateRule validates and stores a new severity rule.
func (s *Service) CreateRule(ctx context.Context, rule *Rule) error {
	ctx, span := traces.StartSpan(ctx, "risk.CreateRule")
	defer span.End()

	if err := validateRule(rule); err != nil {
		return err
	}
	now := time.Now()
	rule.ID = idgen.WithPrefix("rr_")
	rule.CreatedAt = now
	rule.UpdatedAt = now
	span.SetAttributes(traces.RuleID(rule.ID))
	return s.rules.Create(ctx, rule)
}

// UpdateRule validates and replaces an existing rule.
func (s *Service) UpdateRule(ctx context.Context, rule *Rule) error {
	ctx, span := traces.StartSpan(ctx, "risk.UpdateRule", traces.RuleID(rule.ID))
	defer span.End()

	if err := validateRule(rule); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now()
	return s.rules.Update(ctx, rule)
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	ctx, span := traces.StartSpan(ctx, "risk.DeleteRule", traces.RuleID(id))
	defer span.End()

	return s.rules.Delete(ctx, id)
}

func validateRule(rule *Rule) error {
	switch rule.Level {
	case LevelLow, LevelMedium, LevelHigh, LevelVeryHigh:
	default:
		return fmt.Errorf("invalid rule level %q", rule.Level)
	}
	switch rule.MatchMode {
	case MatchAny, MatchAll:
	case "":
		rule.MatchMode = MatchAny
	default:
		return fmt.Errorf("invalid match mode %q", rule.MatchMode)
	}
	if rule.MinOverdueDays < 0 || rule.MinLateCount < 0 {
		return fmt.Errorf("rule thresholds must be non-negative")
	}
	if rule.MinOverdueRatio < 0 || rule.MinOverdueRatio > 1 {
		return fmt.Errorf("min overdue ratio must be in [0,1]")
	}
	return nil
}
