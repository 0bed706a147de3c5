//go:build integration

package riskmodel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/dunning/internal/testutil"
)

func pgModelRecord(id string, status ModelStatus, trainedAt time.Time) *ModelRecord {
	coefs := make([]float64, FeatureCount)
	means := make([]float64, FeatureCount)
	scales := make([]float64, FeatureCount)
	for i := range coefs {
		coefs[i] = 0.1 * float64(i+1)
		scales[i] = 1
	}
	return &ModelRecord{
		ID: id,
		Model: &Model{
			Intercept:    -0.42,
			Coefficients: coefs,
			Means:        means,
			Scales:       scales,
			FeatureNames: FeatureNames,
		},
		Status:      status,
		SampleCount: 120,
		TrainedAt:   trainedAt,
	}
}

func TestPostgresModelStoreSaveAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresModelStore(db)
	require.NoError(t, store.Migrate(ctx))

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Save(ctx, pgModelRecord("rm_pg1", StatusCandidate, now)))

	got, err := store.Get(ctx, "rm_pg1")
	require.NoError(t, err)
	assert.Equal(t, StatusCandidate, got.Status)
	assert.Equal(t, 120, got.SampleCount)
	assert.InDelta(t, -0.42, got.Model.Intercept, 1e-12)
	require.Len(t, got.Model.Coefficients, FeatureCount)
	assert.InDelta(t, 0.1, got.Model.Coefficients[0], 1e-12)
	assert.Equal(t, FeatureNames, got.Model.FeatureNames)

	_, err = store.Get(ctx, "rm_missing")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestPostgresModelStoreActivateRetiresPrevious(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresModelStore(db)
	require.NoError(t, store.Migrate(ctx))

	_, err := store.GetActive(ctx)
	assert.ErrorIs(t, err, ErrNoActiveModel)

	now := time.Now().UTC()
	require.NoError(t, store.Save(ctx, pgModelRecord("rm_pg1", StatusCandidate, now.Add(-time.Minute))))
	require.NoError(t, store.Save(ctx, pgModelRecord("rm_pg2", StatusCandidate, now)))

	require.NoError(t, store.Activate(ctx, "rm_pg1"))
	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rm_pg1", active.ID)

	// Promoting the second model must retire the first in the same
	// transaction, or the partial unique index rejects the update.
	require.NoError(t, store.Activate(ctx, "rm_pg2"))
	active, err = store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rm_pg2", active.ID)

	first, err := store.Get(ctx, "rm_pg1")
	require.NoError(t, err)
	assert.Equal(t, StatusRetired, first.Status)

	// Re-activating the current model is a no-op, not an error.
	require.NoError(t, store.Activate(ctx, "rm_pg2"))

	assert.ErrorIs(t, store.Activate(ctx, "rm_missing"), ErrModelNotFound)
}

func TestPostgresModelStoreList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresModelStore(db)
	require.NoError(t, store.Migrate(ctx))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("rm_pg%d", i)
		require.NoError(t, store.Save(ctx, pgModelRecord(id, StatusCandidate, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rm_pg3", got[0].ID)
	assert.Equal(t, "rm_pg2", got[1].ID)
}

func TestPostgresRunStore(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresRunStore(db)
	require.NoError(t, store.Migrate(ctx))

	base := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Record(ctx, &TrainingRun{
		ID:          "tr_pg1",
		ModelID:     "rm_pg1",
		Status:      RunSucceeded,
		SampleCount: 120,
		Metrics:     &TrainingMetrics{Accuracy: 0.95, AUC: 0.97, BrierScore: 0.04},
		StartedAt:   base,
		FinishedAt:  base.Add(time.Second),
	}))
	require.NoError(t, store.Record(ctx, &TrainingRun{
		ID:         "tr_pg2",
		Status:     RunFailed,
		Error:      "dataset has a single class",
		StartedAt:  base.Add(time.Minute),
		FinishedAt: base.Add(time.Minute + time.Second),
	}))

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Most recently finished first.
	assert.Equal(t, "tr_pg2", runs[0].ID)
	assert.Equal(t, RunFailed, runs[0].Status)
	assert.Equal(t, "dataset has a single class", runs[0].Error)
	assert.Nil(t, runs[0].Metrics)

	assert.Equal(t, "tr_pg1", runs[1].ID)
	assert.Equal(t, "rm_pg1", runs[1].ModelID)
	require.NotNil(t, runs[1].Metrics)
	assert.InDelta(t, 0.97, runs[1].Metrics.AUC, 1e-9)
}
