package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(id, outcome string, started time.Time) Run {
	return Run{
		ID:         id,
		Trigger:    "schedule",
		Outcome:    outcome,
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
	}
}

func TestRecordAndRecent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	require.NoError(t, store.Record(ctx, testRun("run-1", "success", base)))
	require.NoError(t, store.Record(ctx, testRun("run-2", "aborted", base.Add(10*time.Minute))))
	require.NoError(t, store.Record(ctx, testRun("run-3", "no_change", base.Add(20*time.Minute))))

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestRecordPreservesFields(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	started := time.Now().Truncate(time.Second)
	run := Run{
		ID:         "run-x",
		Trigger:    "manual",
		Outcome:    "aborted",
		Error:      "merge conflict between mainline and data branch",
		CommitHash: "",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	require.NoError(t, store.Record(ctx, run))

	runs, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Trigger, got.Trigger)
	assert.Equal(t, run.Outcome, got.Outcome)
	assert.Equal(t, run.Error, got.Error)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 3*time.Second, got.Duration())
}

func TestLastSuccess(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()

	got, err := store.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, store.Record(ctx, testRun("run-1", "success", base)))
	require.NoError(t, store.Record(ctx, testRun("run-2", "success", base.Add(10*time.Minute))))
	require.NoError(t, store.Record(ctx, testRun("run-3", "aborted", base.Add(20*time.Minute))))

	got, err = store.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-2", got.ID)
}

func TestNoopStore(t *testing.T) {
	store := NoopStore{}
	ctx := t.Context()

	require.NoError(t, store.Record(ctx, testRun("run-1", "success", time.Now())))
	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
