package pipeline

import (
	"context"

	"github.com/google/uuid"

	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/scraper"
	"tigrinya.news/pipeline/internal/vectorstore"
)

type Scraper interface {
	Collect(ctx context.Context, np model.Newspaper, params scraper.CollectParams, onPage func(model.CollectProgress) error) ([]string, error)
	Resolve(ctx context.Context, articleURL string) (scraper.ArticlePage, error)
	Download(ctx context.Context, pdfURL, dest string) (int64, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type EntityExtractor interface {
	Extract(ctx context.Context, text string) (model.Entities, error)
}

type ImageDescriber interface {
	Describe(ctx context.Context, pdfPath string) ([]model.ImageDescription, error)
}

type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimensions int) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	Hashes(ctx context.Context, collection string, ids []uuid.UUID) (map[uuid.UUID]string, error)
	DeleteStale(ctx context.Context, collection, pdfFilename string, keep []uuid.UUID) (int64, error)
	Count(ctx context.Context, collection string) (int64, error)
	Collections(ctx context.Context) ([]vectorstore.Collection, error)
}
