package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incore-data/internal/hazus"
	"github.com/sells-group/incore-data/internal/model"
)

func staticRuns(runs []model.Run, err error) RunLister {
	return func(_ context.Context, limit int) ([]model.Run, error) {
		if err != nil {
			return nil, err
		}
		if len(runs) > limit {
			return runs[:limit], nil
		}
		return runs, nil
	}
}

func inventoryRun(id string, status model.RunStatus, age time.Duration, rep *hazus.Report) model.Run {
	r := model.Run{
		ID:        id,
		Kind:      model.RunKindInventory,
		Status:    status,
		CreatedAt: time.Now().UTC().Add(-age),
	}
	if rep != nil {
		r.Result = &model.RunResult{Records: rep.Total, Report: rep}
	}
	return r
}

func TestCollector_Collect(t *testing.T) {
	runs := []model.Run{
		inventoryRun("a", model.RunStatusComplete, time.Hour, &hazus.Report{Total: 100, Unmatched: 5, UnmatchedPct: 5}),
		inventoryRun("b", model.RunStatusComplete, 2*time.Hour, &hazus.Report{Total: 100, Unmatched: 15, UnmatchedPct: 15}),
		inventoryRun("c", model.RunStatusFailed, 3*time.Hour, nil),
		inventoryRun("d", model.RunStatusRunning, time.Minute, nil),
		{ID: "e", Kind: model.RunKindDislocation, Status: model.RunStatusComplete, CreatedAt: time.Now().UTC()},
		inventoryRun("old", model.RunStatusFailed, 48*time.Hour, nil),
	}

	snap, err := NewCollector(staticRuns(runs, nil)).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 3, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsActive)
	assert.InDelta(t, 0.25, snap.FailRate, 1e-9)
	assert.Equal(t, 4, snap.ByKind[model.RunKindInventory])
	assert.Equal(t, 1, snap.ByKind[model.RunKindDislocation])

	assert.Equal(t, 200, snap.Buildings)
	assert.Equal(t, 20, snap.Unmatched)
	assert.InDelta(t, 10.0, snap.UnmatchedPct, 1e-9)
	assert.Equal(t, "b", snap.WorstRunID)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(staticRuns(nil, nil)).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.UnmatchedPct)
}

func TestCollector_ListError(t *testing.T) {
	_, err := NewCollector(staticRuns(nil, errors.New("db down"))).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
