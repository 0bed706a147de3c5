package risk

import (
	"context"
	"sync"
)

// MemoryRuleStore is an in-memory RuleStore for demo/test use.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string // creation order, keeps List deterministic
}

// NewMemoryRuleStore creates an in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]*Rule)}
}

func (s *MemoryRuleStore) Create(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rule
	s.rules[rule.ID] = &r
	s.order = append(s.order, rule.ID)
	return nil
}

func (s *MemoryRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	out := *r
	return &out, nil
}

func (s *MemoryRuleStore) Update(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return ErrRuleNotFound
	}
	r := *rule
	s.rules[rule.ID] = &r
	return nil
}

func (s *MemoryRuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(s.rules, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryRuleStore) List(ctx context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Rule, 0, len(s.order))
	for _, id := range s.order {
		if r, ok := s.rules[id]; ok {
			out := *r
			result = append(result, &out)
		}
	}
	return result, nil
}

// MemoryAssessmentStore is an in-memory AssessmentStore for demo/test use.
type MemoryAssessmentStore struct {
	mu          sync.RWMutex
	assessments map[string][]*Assessment // customerKey → assessments
}

// NewMemoryAssessmentStore creates an in-memory assessment store.
func NewMemoryAssessmentStore() *MemoryAssessmentStore {
	return &MemoryAssessmentStore{assessments: make(map[string][]*Assessment)}
}

func (s *MemoryAssessmentStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Factors = append([]FactorContribution(nil), a.Factors...)
	s.assessments[a.CustomerKey] = append(s.assessments[a.CustomerKey], &cp)
	return nil
}

func (s *MemoryAssessmentStore) ListByCustomer(ctx context.Context, customerKey string, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.assessments[customerKey]
	if len(all) == 0 {
		return nil, nil
	}

	start := len(all) - limit
	if start < 0 {
		start = 0
	}

	// Most recent first.
	result := make([]*Assessment, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		cp := *all[i]
		cp.Factors = append([]FactorContribution(nil), all[i].Factors...)
		result = append(result, &cp)
	}
	return result, nil
}
