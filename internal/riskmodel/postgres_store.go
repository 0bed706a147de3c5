package riskmodel

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresModelStore persists model snapshots in PostgreSQL.
type PostgresModelStore struct {
	db *sql.DB
}

// NewPostgresModelStore creates a PostgreSQL-backed model store.
func NewPostgresModelStore(db *sql.DB) *PostgresModelStore {
	return &PostgresModelStore{db: db}
}

// Migrate creates the risk_models table if it doesn't exist.
func (s *PostgresModelStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_models (
			id            VARCHAR(36) PRIMARY KEY,
			intercept     DOUBLE PRECISION NOT NULL,
			coefficients  JSONB NOT NULL,
			means         JSONB NOT NULL,
			scales        JSONB NOT NULL,
			feature_names JSONB NOT NULL,
			status        VARCHAR(12) NOT NULL CHECK (status IN ('candidate', 'active', 'retired')),
			sample_count  INT NOT NULL DEFAULT 0,
			trained_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_risk_models_active
			ON risk_models (status) WHERE status = 'active';
	`)
	return err
}

func (s *PostgresModelStore) Save(ctx context.Context, record *ModelRecord) error {
	coefs, _ := json.Marshal(record.Model.Coefficients)
	means, _ := json.Marshal(record.Model.Means)
	scales, _ := json.Marshal(record.Model.Scales)
	names, _ := json.Marshal(record.Model.FeatureNames)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_models (id, intercept, coefficients, means, scales, feature_names, status, sample_count, trained_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`,
		record.ID, record.Model.Intercept, coefs, means, scales, names,
		string(record.Status), record.SampleCount, record.TrainedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save risk model: %w", err)
	}
	return nil
}

func (s *PostgresModelStore) Get(ctx context.Context, id string) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intercept, coefficients, means, scales, feature_names, status, sample_count, trained_at
		FROM risk_models
		WHERE id = $1
	`, id)

	record, err := scanModel(row)
	if err == sql.ErrNoRows {
		return nil, ErrModelNotFound
	}
	return record, err
}

func (s *PostgresModelStore) GetActive(ctx context.Context) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intercept, coefficients, means, scales, feature_names, status, sample_count, trained_at
		FROM risk_models
		WHERE status = 'active'
	`)

	record, err := scanModel(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveModel
	}
	return record, err
}

func (s *PostgresModelStore) Activate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE risk_models SET status = 'retired' WHERE status = 'active' AND id <> $1`, id); err != nil {
		return fmt.Errorf("failed to retire active model: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE risk_models SET status = 'active' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to activate model: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrModelNotFound
	}

	return tx.Commit()
}

func (s *PostgresModelStore) List(ctx context.Context, limit int) ([]*ModelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intercept, coefficients, means, scales, feature_names, status, sample_count, trained_at
		FROM risk_models
		ORDER BY trained_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*ModelRecord
	for rows.Next() {
		record, err := scanModel(rows)
		if err != nil {
			continue
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*ModelRecord, error) {
	var r ModelRecord
	var m Model
	var status string
	var coefs, means, scales, names []byte
	var trainedAt time.Time

	if err := row.Scan(&r.ID, &m.Intercept, &coefs, &means, &scales, &names,
		&status, &r.SampleCount, &trainedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(coefs, &m.Coefficients)
	_ = json.Unmarshal(means, &m.Means)
	_ = json.Unmarshal(scales, &m.Scales)
	_ = json.Unmarshal(names, &m.FeatureNames)

	r.Model = &m
	r.Status = ModelStatus(status)
	r.TrainedAt = trainedAt
	return &r, nil
}

// PostgresRunStore persists training runs in PostgreSQL.
type PostgresRunStore struct {
	db *sql.DB
}

// NewPostgresRunStore creates a PostgreSQL-backed training-run store.
func NewPostgresRunStore(db *sql.DB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

// Migrate creates the training_runs table if it doesn't exist.
func (s *PostgresRunStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_runs (
			id           VARCHAR(36) PRIMARY KEY,
			model_id     VARCHAR(36),
			status       VARCHAR(10) NOT NULL CHECK (status IN ('succeeded', 'failed')),
			sample_count INT NOT NULL DEFAULT 0,
			metrics      JSONB,
			error        TEXT NOT NULL DEFAULT '',
			started_at   TIMESTAMPTZ NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_training_runs_finished
			ON training_runs (finished_at DESC);
	`)
	return err
}

func (s *PostgresRunStore) Record(ctx context.Context, run *TrainingRun) error {
	var metricsJSON []byte
	if run.Metrics != nil {
		metricsJSON, _ = json.Marshal(run.Metrics)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, model_id, status, sample_count, metrics, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		run.ID, run.ModelID, string(run.Status), run.SampleCount,
		metricsJSON, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

func (s *PostgresRunStore) List(ctx context.Context, limit int) ([]*TrainingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_id, status, sample_count, metrics, error, started_at, finished_at
		FROM training_runs
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*TrainingRun
	for rows.Next() {
		var run TrainingRun
		var status string
		var metricsJSON []byte
		var modelID sql.NullString

		if err := rows.Scan(&run.ID, &modelID, &status, &run.SampleCount,
			&metricsJSON, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			continue
		}
		run.ModelID = modelID.String
		run.Status = RunStatus(status)
		if len(metricsJSON) > 0 {
			_ = json.Unmarshal(metricsJSON, &run.Metrics)
		}
		result = append(result, &run)
	}
	return result, rows.Err()
}
