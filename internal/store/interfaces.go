package store

import (
	"context"
	"errors"

	"tigrinya.news/pipeline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ArticleStore holds scraped article metadata and processed article text.
type ArticleStore interface {
	Metadata(ctx context.Context) ([]model.PDFMetadata, error)
	// UpsertMetadata matches on ArticleURL and assigns the next index to new entries.
	UpsertMetadata(ctx context.Context, entry model.PDFMetadata) (model.PDFMetadata, error)
	Articles(ctx context.Context) ([]model.Article, error)
	Article(ctx context.Context, index int) (model.Article, error)
	// UpsertArticle matches on PDFFilename.
	UpsertArticle(ctx context.Context, article model.Article) error
	Validate(ctx context.Context) (model.ValidationSummary, error)
	PDFDir() string
}

// PipelineRunStore persists the history of job runs.
type PipelineRunStore interface {
	Start(ctx context.Context, run model.PipelineRun) error
	Finish(ctx context.Context, id int64, status string, result any, errMsg *string) error
	List(ctx context.Context, kind model.JobKind, limit int32) ([]model.PipelineRun, error)
}
