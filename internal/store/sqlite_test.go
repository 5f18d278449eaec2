package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecord(id string, started time.Time) RunRecord {
	return RunRecord{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Minute),
		Config:     model.RunConfig{MaxWorkers: 4, MaxAttempts: 3, ResearchMaxTokens: 2000, EmailMaxTokens: 1000},
		Planned:    10,
		Completed:  8,
		Failed:     1,
		Skipped:    1,
		TotalCost:  cost.MicroUSD(123456),
		Warnings:   []string{"failed to persist 2 cell update(s)"},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	entries := []cost.Entry{
		{Provider: model.ProviderPerplexity, Kind: model.TaskResearch, Row: 2, InputTokens: 1000, OutputTokens: 2000, Requests: 1, Cost: 8000, At: started},
		{Provider: model.ProviderOpenAI, Kind: model.TaskEmail, Row: 2, InputTokens: 500, OutputTokens: 200, Requests: 2, Cost: 195, At: started.Add(time.Minute)},
	}
	require.NoError(t, s.SaveRun(ctx, sampleRecord("run-a", started), entries))

	rec, err := s.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, int64(8), rec.Completed)
	assert.Equal(t, cost.MicroUSD(123456), rec.TotalCost)
	assert.Equal(t, 4, rec.Config.MaxWorkers)
	assert.Equal(t, []string{"failed to persist 2 cell update(s)"}, rec.Warnings)

	got, err := s.RunEntries(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ProviderPerplexity, got[0].Provider)
	assert.Equal(t, cost.MicroUSD(8000), got[0].Cost)
	assert.Equal(t, 2, got[1].Requests)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListRunsOrdersAndLimits(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.SaveRun(ctx, sampleRecord(id, base.Add(time.Duration(i)*time.Hour)), nil))
	}

	recs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-3", recs[0].ID)
	assert.Equal(t, "run-2", recs[1].ID)
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
