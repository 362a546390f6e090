package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/incore-data/internal/model"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int                   `json:"runs_total"`
	RunsComplete int                   `json:"runs_complete"`
	RunsFailed   int                   `json:"runs_failed"`
	RunsActive   int                   `json:"runs_active"`
	FailRate     float64               `json:"fail_rate"`
	ByKind       map[model.RunKind]int `json:"by_kind"`

	// Classification quality over completed inventory runs.
	Buildings       int     `json:"buildings"`
	Unmatched       int     `json:"unmatched"`
	UnmatchedPct    float64 `json:"unmatched_pct"`
	WorstRunID      string  `json:"worst_run_id,omitempty"`
	WorstUnmatchPct float64 `json:"worst_unmatched_pct"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister returns up to limit runs, newest first.
type RunLister func(ctx context.Context, limit int) ([]model.Run, error)

// Collector summarizes persisted runs.
type Collector struct {
	list  RunLister
	limit int
}

// NewCollector creates a collector reading at most 10000 runs per snapshot.
func NewCollector(list RunLister) *Collector {
	return &Collector{list: list, limit: 10000}
}

// Collect gathers a snapshot of runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		ByKind:        map[model.RunKind]int{},
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.list(ctx, c.limit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.ByKind[r.Kind]++

		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsActive++
		}

		if r.Status != model.RunStatusComplete || r.Result == nil || r.Result.Report == nil {
			continue
		}
		rep := r.Result.Report
		snap.Buildings += rep.Total
		snap.Unmatched += rep.Unmatched
		if rep.UnmatchedPct > snap.WorstUnmatchPct {
			snap.WorstUnmatchPct = rep.UnmatchedPct
			snap.WorstRunID = r.ID
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.Buildings > 0 {
		snap.UnmatchedPct = float64(snap.Unmatched) / float64(snap.Buildings) * 100
	}
	return snap, nil
}
