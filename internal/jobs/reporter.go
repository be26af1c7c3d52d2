package jobs

import (
	"context"
	"sync"

	"tigrinya.news/pipeline/internal/model"
)

// Reporter is handed to a running task to publish its stage and progress.
type Reporter struct {
	runner *Runner
	run    *activeRun

	mu      sync.Mutex
	current model.JobRecord
	closed  bool
}

// Stage moves the run into a new stage. It doubles as the cancellation
// checkpoint: tasks call it between sub-steps and stop when it returns an error.
func (rep *Reporter) Stage(ctx context.Context, stage model.Stage, progress any) error {
	if err := rep.Checkpoint(ctx); err != nil {
		return err
	}
	rep.update(ctx, func(rec *model.JobRecord) {
		rec.Stage = &stage
		rec.Progress = progress
	})
	return nil
}

// Progress replaces the counters of the current stage.
func (rep *Reporter) Progress(ctx context.Context, progress any) {
	rep.update(ctx, func(rec *model.JobRecord) {
		rec.Progress = progress
	})
}

// Checkpoint returns ErrCancelled once the run was cancelled and the context error once it expired.
func (rep *Reporter) Checkpoint(ctx context.Context) error {
	if rep.run.cancelled.Load() {
		return ErrCancelled
	}
	return ctx.Err()
}

// RunID identifies the run this reporter belongs to.
func (rep *Reporter) RunID() int64 {
	return rep.run.id
}

func (rep *Reporter) update(ctx context.Context, fn func(rec *model.JobRecord)) {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	if rep.closed {
		return
	}
	rec := rep.current
	fn(&rec)
	rep.current = rec
	rep.runner.publish(ctx, rec)
}

// finish stops further updates and returns the last published record.
func (rep *Reporter) finish() model.JobRecord {
	rep.mu.Lock()
	defer rep.mu.Unlock()
	rep.closed = true
	return rep.current
}
