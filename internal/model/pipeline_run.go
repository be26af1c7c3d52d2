package model

import (
	"encoding/json"
	"time"
)

// PipelineRun is the persisted history entry for one job run.
type PipelineRun struct {
	ID         int64           `json:"id,string"`
	Kind       JobKind         `json:"kind"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *string         `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
