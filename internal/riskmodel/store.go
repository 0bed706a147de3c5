package riskmodel

import (
	"context"
	"errors"
	"time"
)

// ModelStatus tracks a stored model snapshot through its lifecycle.
type ModelStatus string

const (
	StatusCandidate ModelStatus = "candidate"
	StatusActive    ModelStatus = "active"
	StatusRetired   ModelStatus = "retired"
)

// RunStatus is the final state of a recorded training run. Runs are recorded
// once, after the computation finishes; scheduling and retries live outside
// this service.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

var (
	// ErrModelNotFound is returned when a model ID does not exist.
	ErrModelNotFound = errors.New("risk model not found")
	// ErrNoActiveModel is returned when scoring is requested with no
	// activated model.
	ErrNoActiveModel = errors.New("no active risk model")
)

// ModelRecord wraps a fitted model with registry metadata.
type ModelRecord struct {
	ID          string      `json:"id"`
	Model       *Model      `json:"model"`
	Status      ModelStatus `json:"status"`
	SampleCount int         `json:"sampleCount"`
	TrainedAt   time.Time   `json:"trainedAt"`
}

// TrainingRun records one completed training computation and its metrics.
type TrainingRun struct {
	ID          string           `json:"id"`
	ModelID     string           `json:"modelId,omitempty"`
	Status      RunStatus        `json:"status"`
	SampleCount int              `json:"sampleCount"`
	Metrics     *TrainingMetrics `json:"metrics,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"startedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
}

// ModelStore persists model snapshots and tracks which one is active.
type ModelStore interface {
	Save(ctx context.Context, record *ModelRecord) error
	Get(ctx context.Context, id string) (*ModelRecord, error)
	GetActive(ctx context.Context) (*ModelRecord, error)
	// Activate promotes the given model and retires the previously active one.
	Activate(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]*ModelRecord, error)
}

// RunStore persists training-run records.
type RunStore interface {
	Record(ctx context.Context, run *TrainingRun) error
	List(ctx context.Context, limit int) ([]*TrainingRun, error)
}
