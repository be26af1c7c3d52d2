package jobs

import (
	"context"

	"tigrinya.news/pipeline/internal/model"
)

// Observer is told about every record the runner publishes, after the
// status store has been updated. Errors are logged and never affect the run.
type Observer interface {
	Observe(ctx context.Context, rec model.JobRecord) error
}

type ObserverFunc func(ctx context.Context, rec model.JobRecord) error

func (f ObserverFunc) Observe(ctx context.Context, rec model.JobRecord) error {
	return f(ctx, rec)
}
