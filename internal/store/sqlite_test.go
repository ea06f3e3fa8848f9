package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testParams() model.RunParams {
	return model.RunParams{
		Area:              "newport",
		Country:           "GB",
		ResolutionMeters:  200,
		TimeBudgetMinutes: 45,
		SpeedKMH:          15,
		BufferMeters:      10000,
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateRun(ctx, "newport-2026q1", testParams())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.RunStatusQueued, created.Status)

	got, err := st.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "newport-2026q1", got.Name)
	assert.Equal(t, "newport", got.Params.Area)
	assert.Equal(t, 45.0, got.Params.TimeBudgetMinutes)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r", testParams())
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
}

func TestSQLite_UpdateRunStatus_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateRunSummary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r", testParams())
	require.NoError(t, err)

	summary := &model.RunSummary{
		Cells:            120,
		CoreCells:        80,
		SamplesRequested: 10,
		SamplesUsed:      9,
		SamplesFailed:    1,
		DefinedCells:     78,
		Min:              12.5,
		Median:           40.1,
		Max:              88.0,
	}
	require.NoError(t, st.UpdateRunSummary(ctx, run.ID, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 9, got.Summary.SamplesUsed)
	assert.Equal(t, 40.1, got.Summary.Median)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a", testParams())
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "b", testParams())
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusFailed))

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_ListRuns_FilterByArea(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	params := testParams()
	params.Area = "cardiff"
	_, err := st.CreateRun(ctx, "cardiff-run", params)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "newport-run", testParams())
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Area: "cardiff"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "cardiff-run", runs[0].Name)
}

func TestSQLite_ListRuns_Limit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.CreateRun(ctx, "r", testParams())
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSQLite_SaveAndGetPerformance(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r", testParams())
	require.NoError(t, err)

	records := []model.PerformanceRecord{
		{CellID: 0, Defined: true, Value: 42.5, Samples: 8, Min: 30.0, Max: 55.5},
		{CellID: 1, Defined: false, Samples: 0},
		{CellID: 2, Defined: true, Value: 61.0, Samples: 8, Min: 58.2, Max: 64.9},
	}
	require.NoError(t, st.SavePerformance(ctx, run.ID, records))

	got, err := st.GetPerformance(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, records[0], got[0])
	assert.False(t, got[1].Defined)
	assert.Zero(t, got[1].Value)
	assert.Equal(t, 61.0, got[2].Value)
}

func TestSQLite_SavePerformance_ReplacesExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r", testParams())
	require.NoError(t, err)

	first := []model.PerformanceRecord{
		{CellID: 0, Defined: true, Value: 10, Samples: 2, Min: 10, Max: 10},
		{CellID: 1, Defined: true, Value: 20, Samples: 2, Min: 20, Max: 20},
	}
	require.NoError(t, st.SavePerformance(ctx, run.ID, first))

	second := []model.PerformanceRecord{
		{CellID: 0, Defined: true, Value: 15, Samples: 4, Min: 12, Max: 18},
	}
	require.NoError(t, st.SavePerformance(ctx, run.ID, second))

	got, err := st.GetPerformance(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 15.0, got[0].Value)
}

func TestSQLite_GetPerformance_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "r", testParams())
	require.NoError(t, err)

	got, err := st.GetPerformance(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
