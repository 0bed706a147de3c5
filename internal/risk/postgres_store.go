package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresRuleStore persists severity rules in PostgreSQL.
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a PostgreSQL-backed rule store.
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// Migrate creates the risk_rules table if it doesn't exist.
func (s *PostgresRuleStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_rules (
			id                 VARCHAR(36) PRIMARY KEY,
			name               TEXT NOT NULL,
			level              VARCHAR(12) NOT NULL CHECK (level IN ('low', 'medium', 'high', 'very_high')),
			min_overdue_days   INT NOT NULL DEFAULT 0,
			min_overdue_ratio  NUMERIC(5,4) NOT NULL DEFAULT 0,
			min_late_count     INT NOT NULL DEFAULT 0,
			match_mode         VARCHAR(4) NOT NULL DEFAULT 'any' CHECK (match_mode IN ('any', 'all')),
			active             BOOLEAN NOT NULL DEFAULT TRUE,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_rules_active ON risk_rules (active);
	`)
	return err
}

func (s *PostgresRuleStore) Create(ctx context.Context, rule *Rule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_rules (id, name, level, min_overdue_days, min_overdue_ratio, min_late_count, match_mode, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rule.ID, rule.Name, string(rule.Level),
		rule.MinOverdueDays, rule.MinOverdueRatio, rule.MinLateCount,
		string(rule.MatchMode), rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create risk rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, level, min_overdue_days, min_overdue_ratio, min_late_count, match_mode, active, created_at, updated_at
		FROM risk_rules
		WHERE id = $1
	`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, ErrRuleNotFound
	}
	return rule, err
}

func (s *PostgresRuleStore) Update(ctx context.Context, rule *Rule) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE risk_rules
		SET name = $2, level = $3, min_overdue_days = $4, min_overdue_ratio = $5,
		    min_late_count = $6, match_mode = $7, active = $8, updated_at = NOW()
		WHERE id = $1
	`,
		rule.ID, rule.Name, string(rule.Level),
		rule.MinOverdueDays, rule.MinOverdueRatio, rule.MinLateCount,
		string(rule.MatchMode), rule.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresRuleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM risk_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete risk rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PostgresRuleStore) List(ctx context.Context) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, level, min_overdue_days, min_overdue_ratio, min_late_count, match_mode, active, created_at, updated_at
		FROM risk_rules
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			continue
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var r Rule
	var level, mode string
	if err := row.Scan(&r.ID, &r.Name, &level, &r.MinOverdueDays, &r.MinOverdueRatio,
		&r.MinLateCount, &mode, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Level = Level(level)
	r.MatchMode = MatchMode(mode)
	return &r, nil
}

// PostgresAssessmentStore persists assessments in PostgreSQL.
type PostgresAssessmentStore struct {
	db *sql.DB
}

// NewPostgresAssessmentStore creates a PostgreSQL-backed assessment store.
func NewPostgresAssessmentStore(db *sql.DB) *PostgresAssessmentStore {
	return &PostgresAssessmentStore{db: db}
}

// Migrate creates the risk_assessments table if it doesn't exist.
func (s *PostgresAssessmentStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS risk_assessments (
			id             VARCHAR(36) PRIMARY KEY,
			customer_key   TEXT NOT NULL,
			level          VARCHAR(12) NOT NULL,
			probability    NUMERIC(5,4) NOT NULL CHECK (probability >= 0 AND probability <= 1),
			signal         VARCHAR(10) NOT NULL CHECK (signal IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
			factors        JSONB NOT NULL DEFAULT '[]',
			recommendation TEXT NOT NULL DEFAULT '',
			evaluated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_risk_assessments_customer
			ON risk_assessments (customer_key, evaluated_at DESC);
	`)
	return err
}

func (s *PostgresAssessmentStore) Record(ctx context.Context, a *Assessment) error {
	factorsJSON, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (id, customer_key, level, probability, signal, factors, recommendation, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		a.ID, a.CustomerKey, string(a.Level), a.Probability,
		string(a.Signal), factorsJSON, a.Recommendation, a.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

func (s *PostgresAssessmentStore) ListByCustomer(ctx context.Context, customerKey string, limit int) ([]*Assessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_key, level, probability, signal, factors, recommendation, evaluated_at
		FROM risk_assessments
		WHERE customer_key = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`, customerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Assessment
	for rows.Next() {
		var a Assessment
		var level, signal string
		var factorsJSON []byte
		var evaluatedAt time.Time

		if err := rows.Scan(&a.ID, &a.CustomerKey, &level, &a.Probability, &signal,
			&factorsJSON, &a.Recommendation, &evaluatedAt); err != nil {
			continue
		}
		a.Level = Level(level)
		a.Signal = Signal(signal)
		a.EvaluatedAt = evaluatedAt
		_ = json.Unmarshal(factorsJSON, &a.Factors)
		result = append(result, &a)
	}
	return result, rows.Err()
}
