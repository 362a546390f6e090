package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/model"
)

// Track records one pipeline execution: it creates the run, marks it running,
// calls fn with the run id and stores the outcome. fn's error is returned
// after the run is marked failed.
func Track(ctx context.Context, st Store, kind model.RunKind, params model.RunParams,
	fn func(ctx context.Context, runID string) (*model.RunResult, error),
) (*model.Run, error) {
	run, err := st.CreateRun(ctx, kind, params)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "store"), zap.String("run_id", run.ID), zap.String("kind", string(kind)))

	if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return run, err
	}
	run.Status = model.RunStatusRunning

	result, runErr := fn(ctx, run.ID)
	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		if err := st.FailRun(context.WithoutCancel(ctx), run.ID, runErr); err != nil {
			log.Error("failed to record run failure", zap.Error(err))
		}
		run.Status = model.RunStatusFailed
		run.Result = failedResult(runErr)
		return run, runErr
	}

	if result == nil {
		result = &model.RunResult{}
	}
	if err := st.CompleteRun(ctx, run.ID, result); err != nil {
		return run, eris.Wrapf(err, "store: complete run %s", run.ID)
	}
	run.Status = model.RunStatusComplete
	run.Result = result
	log.Info("run complete", zap.Int("records", result.Records))
	return run, nil
}
