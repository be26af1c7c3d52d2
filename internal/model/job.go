package model

import "time"

type JobKind string

const (
	JobKindScrape  JobKind = "scrape"
	JobKindProcess JobKind = "process"
	JobKindIngest  JobKind = "ingest"
)

var AllJobKinds = []JobKind{JobKindScrape, JobKindProcess, JobKindIngest}

func (k JobKind) Valid() bool {
	switch k {
	case JobKindScrape, JobKindProcess, JobKindIngest:
		return true
	}
	return false
}

type Stage string

const (
	StageStarting    Stage = "starting"
	StageCollecting  Stage = "collecting"
	StageDownloading Stage = "downloading"
	StageExtracting  Stage = "extracting"
	StageEmbedding   Stage = "embedding"
)

// JobRecord is the published state of one job run. Records are values: every
// update produces a new record, nothing mutates a published one.
type JobRecord struct {
	Kind      JobKind    `json:"kind"`
	RunID     int64      `json:"run_id,string"`
	Running   bool       `json:"running"`
	Stage     *Stage     `json:"stage"`
	Progress  any        `json:"progress,omitempty"`
	Result    any        `json:"result"`
	Error     *string    `json:"error"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Terminal reports whether the run has finished, successfully or not.
func (r JobRecord) Terminal() bool {
	return !r.Running && r.EndedAt != nil
}

func (r JobRecord) Succeeded() bool {
	return r.Terminal() && r.Error == nil
}

func (r JobRecord) Failed() bool {
	return r.Terminal() && r.Error != nil
}

// Status is the short form stored in run history.
func (r JobRecord) Status() string {
	switch {
	case r.Running:
		return "running"
	case r.Failed():
		return "failed"
	case r.Succeeded():
		return "completed"
	default:
		return "idle"
	}
}

type CollectProgress struct {
	Page      int `json:"page"`
	URLsFound int `json:"urls_found"`
}

// DownloadProgress stays on a failed scrape record, so Successful tells how
// many articles were kept before the failure; Result is nil in that case.
type DownloadProgress struct {
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	URL        string `json:"url,omitempty"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

type ExtractProgress struct {
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	Filename string `json:"filename,omitempty"`
}

type EmbedProgress struct {
	Batch    int `json:"batch"`
	Batches  int `json:"batches"`
	Embedded int `json:"embedded"`
	Total    int `json:"total"`
}

type ScrapeResult struct {
	NewspaperID string `json:"newspaper_id"`
	Successful  int    `json:"successful"`
	Total       int    `json:"total"`
}

type ProcessResult struct {
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	TotalWords int `json:"total_words"`
}

type IngestResult struct {
	Count       int    `json:"count"`
	Embedded    int    `json:"embedded"`
	PointsCount int64  `json:"points_count"`
	Collection  string `json:"collection"`

	// Points dropped because their article now has fewer sentences.
	Removed int64 `json:"removed"`
}
