package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incore-data/internal/config"
	"github.com/sells-group/incore-data/internal/model"
)

func TestChecker_Check(t *testing.T) {
	var runs []model.Run
	for i := range 6 {
		status := model.RunStatusFailed
		if i == 0 {
			status = model.RunStatusComplete
		}
		runs = append(runs, inventoryRun(string(rune('a'+i)), status, time.Minute, nil))
	}
	cfg := config.MonitoringConfig{FailureRateThreshold: 0.5, LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(staticRuns(runs, nil)), NewAlerter(cfg), cfg)

	alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(staticRuns(nil, errors.New("db down"))), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Check(context.Background()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24, FailureRateThreshold: 0.10}
	checker := NewChecker(NewCollector(staticRuns(nil, nil)), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker.Run did not return after cancel")
	}
}
