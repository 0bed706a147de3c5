package risk

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type captureBroadcaster struct {
	mu          sync.Mutex
	assessments []*Assessment
}

func (b *captureBroadcaster) BroadcastAssessment(a *Assessment) {
	b.mu.Lock()
	b.assessments = append(b.assessments, a)
	b.mu.Unlock()
}

func (b *captureBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.assessments)
}

func newTestService() (*Service, *MemoryRuleStore, *MemoryAssessmentStore) {
	rules := NewMemoryRuleStore()
	assessments := NewMemoryAssessmentStore()
	return NewService(rules, assessments), rules, assessments
}

func TestServiceEvaluate(t *testing.T) {
	ctx := context.Background()
	svc, _, assessments := newTestService()

	require.NoError(t, svc.CreateRule(ctx, &Rule{
		Name:           "aging",
		Level:          LevelHigh,
		MinOverdueDays: 30,
		Active:         true,
	}))

	a, err := svc.Evaluate(ctx, "acme", Metrics{
		TotalOutstanding: 10000,
		OverdueAmount:    8000,
		OverdueRatio:     0.8,
		MaxDaysPastDue:   45,
		LateCount:        5,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.ID, "ra_"))
	assert.Equal(t, "acme", a.CustomerKey)
	assert.Equal(t, LevelHigh, a.Level)
	assert.Greater(t, a.Probability, 0.0)
	assert.Len(t, a.Factors, 4)
	assert.NotEmpty(t, a.Recommendation)
	assert.False(t, a.EvaluatedAt.IsZero())

	// Persisted asynchronously
	require.Eventually(t, func() bool {
		history, err := assessments.ListByCustomer(ctx, "acme", 10)
		return err == nil && len(history) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServiceEvaluateBroadcasts(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	b := &captureBroadcaster{}
	svc.WithBroadcaster(b)

	_, err := svc.Evaluate(ctx, "acme", Metrics{OverdueRatio: 0.9})
	require.NoError(t, err)
	assert.Equal(t, 1, b.count())
}

func TestServiceHistoryDefaultLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, assessments := newTestService()

	for i := 0; i < 60; i++ {
		require.NoError(t, assessments.Record(ctx, &Assessment{
			ID: "ra_x", CustomerKey: "acme",
		}))
	}

	history, err := svc.History(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Len(t, history, 50)
}

func TestServiceRuleValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"valid", Rule{Name: "r", Level: LevelMedium, MinOverdueDays: 10}, true},
		{"bad level", Rule{Name: "r", Level: "extreme"}, false},
		{"bad match mode", Rule{Name: "r", Level: LevelLow, MatchMode: "some"}, false},
		{"negative days", Rule{Name: "r", Level: LevelLow, MinOverdueDays: -1}, false},
		{"negative late count", Rule{Name: "r", Level: LevelLow, MinLateCount: -3}, false},
		{"ratio above one", Rule{Name: "r", Level: LevelLow, MinOverdueRatio: 1.5}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.rule
			err := svc.CreateRule(ctx, &rule)
			if tc.ok {
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(rule.ID, "rr_"))
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestServiceRuleSpansCarryRuleID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(prev)

	ctx := context.Background()
	svc, _, _ := newTestService()

	rule := &Rule{Name: "aging", Level: LevelHigh}
	require.NoError(t, svc.CreateRule(ctx, rule))
	require.NoError(t, svc.UpdateRule(ctx, rule))
	require.NoError(t, svc.DeleteRule(ctx, rule.ID))

	tagged := map[string]bool{}
	for _, span := range recorder.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == "rule.id" && attr.Value.AsString() == rule.ID {
				tagged[span.Name()] = true
			}
		}
	}
	for _, name := range []string{"risk.CreateRule", "risk.UpdateRule", "risk.DeleteRule"} {
		assert.True(t, tagged[name], "span %s missing rule.id attribute", name)
	}
}

func TestServiceCreateRuleDefaultsMatchMode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	rule := &Rule{Name: "r", Level: LevelLow}
	require.NoError(t, svc.CreateRule(ctx, rule))
	assert.Equal(t, MatchAny, rule.MatchMode)
}

func TestServiceUpdateMissingRule(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	err := svc.UpdateRule(ctx, &Rule{ID: "rr_missing", Name: "r", Level: LevelLow})
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, svc.DeleteRule(ctx, "rr_missing"), ErrRuleNotFound)
}
