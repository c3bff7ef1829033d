package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteLog(t *testing.T) {
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "audit", "tasks.db"))
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{TaskID: "t1", Timestamp: base, TaskType: "planning", Status: "COMPLETED", Priority: 0.6, Duration: 20 * time.Millisecond},
		{TaskID: "t2", Timestamp: base.Add(time.Minute), TaskType: "decision", Status: "FAILED", Priority: 0.5, Duration: 40 * time.Millisecond, Error: "no options"},
		{TaskID: "t3", Timestamp: base.Add(2 * time.Minute), TaskType: "planning", Status: "COMPLETED", Fallback: true, Metadata: map[string]string{"source": "repl"}},
	}
	for _, e := range entries {
		require.NoError(t, log.Log(ctx, e))
	}

	all, err := log.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].TaskID)
	assert.Equal(t, "repl", all[0].Metadata["source"])
	assert.True(t, all[0].Fallback)

	failed, err := log.Query(ctx, Filter{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "no options", failed[0].Error)
	assert.Equal(t, 40*time.Millisecond, failed[0].Duration)

	planning, err := log.Query(ctx, Filter{TaskType: "planning", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, planning, 1)

	stats, err := log.Stats(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 1.0/3.0, stats.ErrorRate, 1e-9)
	assert.Equal(t, 2, stats.ByType["planning"])
}

func TestSQLiteLogEmptyStats(t *testing.T) {
	log, err := NewSQLiteLog(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer log.Close()

	stats, err := log.Stats(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.ErrorRate)
}
