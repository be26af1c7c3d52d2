package store

import (
	"context"

	"tigrinya.news/pipeline/internal/model"
)

// RunRecorder writes a history row when a run starts and completes it when
// the run ends. Intermediate progress updates are not persisted.
type RunRecorder struct {
	runs PipelineRunStore
}

func NewRunRecorder(runs PipelineRunStore) *RunRecorder {
	return &RunRecorder{runs: runs}
}

func (r *RunRecorder) Observe(ctx context.Context, rec model.JobRecord) error {
	switch {
	case rec.Running && rec.Stage != nil && *rec.Stage == model.StageStarting:
		run := model.PipelineRun{
			ID:     rec.RunID,
			Kind:   rec.Kind,
			Status: rec.Status(),
		}
		if rec.StartedAt != nil {
			run.StartedAt = *rec.StartedAt
		}
		return r.runs.Start(ctx, run)
	case rec.Terminal():
		return r.runs.Finish(ctx, rec.RunID, rec.Status(), rec.Result, rec.Error)
	default:
		return nil
	}
}
