package dto

import (
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/vectorstore"
)

type ScrapeRequest struct {
	NewspaperID string `json:"newspaper_id"`
	MaxArticles int    `json:"max_articles"`
	MaxPages    int    `json:"max_pages"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type ScrapeResponse struct {
	OK          bool   `json:"ok"`
	Message     string `json:"message"`
	RunID       int64  `json:"run_id,string"`
	NewspaperID string `json:"newspaper_id"`
	MaxArticles int    `json:"max_articles"`
	MaxPages    int    `json:"max_pages"`
}

type ProcessRequest struct {
	Filenames []string `json:"filenames"`
}

type ProcessResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	RunID   int64  `json:"run_id,string"`
	Count   int    `json:"count"`
}

type IngestRequest struct {
	Limit      int    `json:"limit"`
	Collection string `json:"collection"`

	// CollectionName is the older spelling of Collection; Collection wins when both are set.
	CollectionName string `json:"collection_name"`

	// Async returns as soon as the run is accepted instead of waiting for it.
	Async bool `json:"async"`
}

func (r IngestRequest) TargetCollection() string {
	if r.Collection != "" {
		return r.Collection
	}
	return r.CollectionName
}

type IngestResponse struct {
	OK          bool    `json:"ok"`
	Message     string  `json:"message,omitempty"`
	RunID       int64   `json:"run_id,string"`
	Count       *int    `json:"count,omitempty"`
	Embedded    *int    `json:"embedded,omitempty"`
	PointsCount *int64  `json:"points_count,omitempty"`
	Collection  string  `json:"collection,omitempty"`
	Removed     int64   `json:"removed,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// StatusResponse is the polled job record with an ok flag.
type StatusResponse struct {
	OK bool `json:"ok"`
	model.JobRecord
}

type CollectionsResponse struct {
	OK          bool                     `json:"ok"`
	Collections []vectorstore.Collection `json:"collections"`
}

type RunsResponse struct {
	OK   bool                `json:"ok"`
	Runs []model.PipelineRun `json:"runs"`
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

func ToIngestResponse(rec model.JobRecord) IngestResponse {
	resp := IngestResponse{OK: rec.Succeeded(), RunID: rec.RunID, Error: rec.Error}
	if result, ok := rec.Result.(model.IngestResult); ok {
		resp.Count = &result.Count
		resp.Embedded = &result.Embedded
		resp.PointsCount = &result.PointsCount
		resp.Collection = result.Collection
		resp.Removed = result.Removed
	}
	return resp
}
