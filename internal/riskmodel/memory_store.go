package riskmodel

import (
	"context"
	"sync"
)

// MemoryModelStore is an in-memory ModelStore for demo/test use.
type MemoryModelStore struct {
	mu      sync.RWMutex
	records map[string]*ModelRecord
	order   []string
}

// NewMemoryModelStore creates an in-memory model store.
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{records: make(map[string]*ModelRecord)}
}

func (s *MemoryModelStore) Save(ctx context.Context, record *ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyRecord(record)
	if _, exists := s.records[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = cp
	return nil
}

func (s *MemoryModelStore) Get(ctx context.Context, id string) (*ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrModelNotFound
	}
	return copyRecord(r), nil
}

func (s *MemoryModelStore) GetActive(ctx context.Context) (*ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Status == StatusActive {
			return copyRecord(r), nil
		}
	}
	return nil, ErrNoActiveModel
}

func (s *MemoryModelStore) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.records[id]
	if !ok {
		return ErrModelNotFound
	}
	for _, r := range s.records {
		if r.Status == StatusActive && r.ID != id {
			r.Status = StatusRetired
		}
	}
	target.Status = StatusActive
	return nil
}

func (s *MemoryModelStore) List(ctx context.Context, limit int) ([]*ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first.
	result := make([]*ModelRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(result) < limit; i-- {
		if r, ok := s.records[s.order[i]]; ok {
			result = append(result, copyRecord(r))
		}
	}
	return result, nil
}

func copyRecord(r *ModelRecord) *ModelRecord {
	cp := *r
	if r.Model != nil {
		m := *r.Model
		m.Coefficients = append([]float64(nil), r.Model.Coefficients...)
		m.Means = append([]float64(nil), r.Model.Means...)
		m.Scales = append([]float64(nil), r.Model.Scales...)
		m.FeatureNames = append([]string(nil), r.Model.FeatureNames...)
		cp.Model = &m
	}
	return &cp
}

// MemoryRunStore is an in-memory RunStore for demo/test use.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs []*TrainingRun
}

// NewMemoryRunStore creates an in-memory training-run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

func (s *MemoryRunStore) Record(ctx context.Context, run *TrainingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	if run.Metrics != nil {
		m := *run.Metrics
		cp.Metrics = &m
	}
	s.runs = append(s.runs, &cp)
	return nil
}

func (s *MemoryRunStore) List(ctx context.Context, limit int) ([]*TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*TrainingRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *s.runs[i]
		result = append(result, &cp)
	}
	return result, nil
}
