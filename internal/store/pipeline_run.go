package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tigrinya.news/pipeline/internal/model"
)

type pipelineRunStore struct {
	pool *pgxpool.Pool
}

func NewPipelineRunStore(pool *pgxpool.Pool) PipelineRunStore {
	return &pipelineRunStore{pool: pool}
}

func (s *pipelineRunStore) Start(ctx context.Context, run model.PipelineRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, kind, status, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, string(run.Kind), run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting pipeline run: %w", err)
	}
	return nil
}

func (s *pipelineRunStore) Finish(ctx context.Context, id int64, status string, result any, errMsg *string) error {
	var payload []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding run result: %w", err)
		}
		payload = b
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = $2, result = $3, error = $4, finished_at = now()
		WHERE id = $1
	`, id, status, payload, errMsg)
	if err != nil {
		return fmt.Errorf("finishing pipeline run: %w", err)
	}
	return nil
}

// List returns the newest runs first. An empty kind lists every kind.
func (s *pipelineRunStore) List(ctx context.Context, kind model.JobKind, limit int32) ([]model.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, status, result, error, started_at, finished_at
		FROM pipeline_runs
		WHERE $1::text = '' OR kind = $1::text
		ORDER BY started_at DESC
		LIMIT $2
	`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PipelineRun, error) {
		var run model.PipelineRun
		var kind string
		var result []byte
		if err := row.Scan(&run.ID, &kind, &run.Status, &result, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return model.PipelineRun{}, err
		}
		run.Kind = model.JobKind(kind)
		if len(result) > 0 {
			run.Result = json.RawMessage(result)
		}
		return run, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning pipeline runs: %w", err)
	}
	return runs, nil
}
