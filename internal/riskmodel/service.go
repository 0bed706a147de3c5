package riskmodel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/dunning/internal/idgen"
	"github.com/ledgerline/dunning/internal/metrics"
	"github.com/ledgerline/dunning/internal/risk"
	"github.com/ledgerline/dunning/internal/traces"
)

// Broadcaster pushes completed training runs to live subscribers.
type Broadcaster interface {
	BroadcastTrainingRun(run *TrainingRun)
}

// ModelScore is the learned-model verdict for one customer snapshot.
type ModelScore struct {
	ModelID     string      `json:"modelId"`
	Probability float64     `json:"probability"`
	Signal      risk.Signal `json:"signal"`
}

// Service owns the model registry: it runs training computations, records
// their outcomes, and scores customers with the active model. Scheduling of
// training (when, how often, retries) belongs to the caller.
type Service struct {
	models        ModelStore
	runs          RunStore
	logger        *slog.Logger
	broadcaster   Broadcaster
	trainDefaults TrainConfig
}

// NewService creates a model registry service.
func NewService(models ModelStore, runs RunStore, logger *slog.Logger) *Service {
	return &Service{models: models, runs: runs, logger: logger}
}

// WithBroadcaster attaches a realtime broadcaster.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

// WithTrainDefaults sets the hyperparameters applied when a training request
// omits them. Fields left zero here still fall back to the package defaults.
func (s *Service) WithTrainDefaults(cfg TrainConfig) *Service {
	s.trainDefaults = cfg
	return s
}

// RunTraining fits a model on the samples, evaluates it on the same set,
// and persists both the model snapshot (as a candidate) and the run record.
// The caller is expected to invoke this off any request path; the numeric
// loop has no cancellation point.
func (s *Service) RunTraining(ctx context.Context, samples []Sample, cfg TrainConfig) (*ModelRecord, *TrainingRun, error) {
	run := &TrainingRun{
		ID:          idgen.WithPrefix("tr_"),
		SampleCount: len(samples),
		StartedAt:   time.Now(),
	}

	ctx, span := traces.StartSpan(ctx, "riskmodel.RunTraining", traces.RunID(run.ID))
	defer span.End()

	// Request hyperparameters win; unset ones take the service defaults.
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = s.trainDefaults.LearningRate
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = s.trainDefaults.MaxIterations
	}
	if cfg.L2Penalty <= 0 {
		cfg.L2Penalty = s.trainDefaults.L2Penalty
	}

	model, err := Train(samples, cfg)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now()
		s.finishRun(ctx, run)
		return nil, run, err
	}

	trainingMetrics, err := Evaluate(model, samples)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now()
		s.finishRun(ctx, run)
		return nil, run, err
	}

	record := &ModelRecord{
		ID:          idgen.WithPrefix("rm_"),
		Model:       model,
		Status:      StatusCandidate,
		SampleCount: len(samples),
		TrainedAt:   time.Now(),
	}
	if err := s.models.Save(ctx, record); err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now()
		s.finishRun(ctx, run)
		return nil, run, fmt.Errorf("failed to save model: %w", err)
	}

	run.ModelID = record.ID
	run.Status = RunSucceeded
	run.Metrics = trainingMetrics
	run.FinishedAt = time.Now()
	s.finishRun(ctx, run)

	s.logger.Info("training run completed",
		"run_id", run.ID,
		"model_id", record.ID,
		"samples", len(samples),
		"accuracy", trainingMetrics.Accuracy,
		"auc", trainingMetrics.AUC,
	)

	return record, run, nil
}

func (s *Service) finishRun(ctx context.Context, run *TrainingRun) {
	metrics.TrainingRunsTotal.WithLabelValues(string(run.Status)).Inc()
	metrics.TrainingDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	if s.runs != nil {
		if err := s.runs.Record(ctx, run); err != nil {
			s.logger.Warn("failed to record training run", "run_id", run.ID, "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTrainingRun(run)
	}
}

// ScoreActive builds features for the snapshot and scores it with the
// currently active model.
func (s *Service) ScoreActive(ctx context.Context, m risk.Metrics, asOf time.Time) (*ModelScore, error) {
	ctx, span := traces.StartSpan(ctx, "riskmodel.ScoreActive")
	defer span.End()

	record, err := s.models.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(traces.ModelID(record.ID))

	probability, err := record.Model.Predict(BuildFeatures(m, asOf))
	if err != nil {
		return nil, err
	}

	metrics.ModelPredictionsTotal.Inc()
	return &ModelScore{
		ModelID:     record.ID,
		Probability: probability,
		Signal:      risk.ResolveSignal(probability),
	}, nil
}

// Activate promotes a candidate model to active.
func (s *Service) Activate(ctx context.Context, id string) error {
	return s.models.Activate(ctx, id)
}

// Get returns one stored model.
func (s *Service) Get(ctx context.Context, id string) (*ModelRecord, error) {
	return s.models.Get(ctx, id)
}

// GetActive returns the active model.
func (s *Service) GetActive(ctx context.Context) (*ModelRecord, error) {
	return s.models.GetActive(ctx)
}

// List returns recent models, most recent first.
func (s *Service) List(ctx context.Context, limit int) ([]*ModelRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.models.List(ctx, limit)
}

// Runs returns recent training runs, most recent first.
func (s *Service) Runs(ctx context.Context, limit int) ([]*TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runs.List(ctx, limit)
}
