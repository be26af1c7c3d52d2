package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tigrinya.news/pipeline/common/llm"
	"tigrinya.news/pipeline/internal/extract"
	"tigrinya.news/pipeline/internal/jobs"
	"tigrinya.news/pipeline/internal/model"
	"tigrinya.news/pipeline/internal/vectorstore"
)

const hashLookupBatch = 500

func (s *service) ingestTask(params IngestParams) jobs.Task {
	return func(ctx context.Context, rep *jobs.Reporter) (any, error) {
		collection := params.Collection

		points, files, err := s.sentencePoints(ctx, params.Limit)
		if err != nil {
			return nil, err
		}

		if err := s.deps.Vectors.EnsureCollection(ctx, collection, s.deps.Embedder.Dimensions()); err != nil {
			return nil, fmt.Errorf("preparing collection: %w", err)
		}

		changed, err := s.changedPoints(ctx, collection, points)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "ingest plan", "sentences", len(points), "changed", len(changed), "collection", collection)

		batches := (len(changed) + s.cfg.BatchSize - 1) / s.cfg.BatchSize
		progress := model.EmbedProgress{Batches: batches, Total: len(changed)}
		if err := rep.Stage(ctx, model.StageEmbedding, progress); err != nil {
			return nil, err
		}

		for b := 0; b < batches; b++ {
			start := b * s.cfg.BatchSize
			end := min(start+s.cfg.BatchSize, len(changed))
			batch := changed[start:end]

			progress.Batch = b + 1
			if err := rep.Stage(ctx, model.StageEmbedding, progress); err != nil {
				return nil, err
			}

			if err := s.embedBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("embedding batch %d of %d: %w", b+1, batches, err)
			}
			if err := s.deps.Vectors.Upsert(ctx, collection, batch); err != nil {
				return nil, fmt.Errorf("upserting batch %d of %d: %w", b+1, batches, err)
			}

			progress.Embedded += len(batch)
			rep.Progress(ctx, progress)

			if s.cfg.BatchDelay > 0 && b < batches-1 {
				select {
				case <-time.After(s.cfg.BatchDelay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}

		removed, err := s.removeStale(ctx, collection, points, files)
		if err != nil {
			return nil, err
		}

		count, err := s.deps.Vectors.Count(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("counting points: %w", err)
		}

		return model.IngestResult{
			Count:       len(points),
			Embedded:    progress.Embedded,
			PointsCount: count,
			Collection:  collection,
			Removed:     removed,
		}, nil
	}
}

// sentencePoints splits every processed article into sentence points with
// stable IDs, and returns the filenames of the articles it covered.
// Embeddings are filled in later.
func (s *service) sentencePoints(ctx context.Context, limit int) ([]vectorstore.Point, []string, error) {
	articles, err := s.deps.Articles.Articles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading articles: %w", err)
	}

	var (
		points []vectorstore.Point
		files  []string
	)
	used := 0
	for _, a := range articles {
		if a.ProcessingStatus != model.ProcessingCompleted || a.ExtractedText == "" {
			continue
		}
		if limit > 0 && used >= limit {
			break
		}
		used++
		files = append(files, a.PDFFilename)

		for i, sentence := range extract.SplitSentences(a.ExtractedText, extract.DefaultMinWords) {
			points = append(points, vectorstore.Point{
				ID:          vectorstore.PointID(a.PDFFilename, i),
				Content:     sentence,
				ContentHash: vectorstore.ContentHash(sentence),
				Metadata: map[string]any{
					"article_index":    a.Index,
					"news_title":       a.NewsTitle,
					"article_url":      a.ArticleURL,
					"publication_date": a.PublicationDate,
					"pdf_filename":     a.PDFFilename,
					"sentence_index":   i,
				},
			})
		}
	}
	return points, files, nil
}

// removeStale deletes, per covered article, the stored points that no longer
// match one of its current sentences.
func (s *service) removeStale(ctx context.Context, collection string, points []vectorstore.Point, files []string) (int64, error) {
	keep := make(map[string][]uuid.UUID, len(files))
	for _, p := range points {
		name, _ := p.Metadata["pdf_filename"].(string)
		keep[name] = append(keep[name], p.ID)
	}

	var removed int64
	for _, name := range files {
		n, err := s.deps.Vectors.DeleteStale(ctx, collection, name, keep[name])
		if err != nil {
			return removed, fmt.Errorf("removing stale points: %w", err)
		}
		if n > 0 {
			slog.InfoContext(ctx, "stale points removed", "filename", name, "points", n)
		}
		removed += n
	}
	return removed, nil
}

// changedPoints drops points whose stored content hash matches.
func (s *service) changedPoints(ctx context.Context, collection string, points []vectorstore.Point) ([]vectorstore.Point, error) {
	var changed []vectorstore.Point
	for start := 0; start < len(points); start += hashLookupBatch {
		chunk := points[start:min(start+hashLookupBatch, len(points))]

		ids := make([]uuid.UUID, len(chunk))
		for i, p := range chunk {
			ids[i] = p.ID
		}
		stored, err := s.deps.Vectors.Hashes(ctx, collection, ids)
		if err != nil {
			return nil, fmt.Errorf("reading stored hashes: %w", err)
		}

		for _, p := range chunk {
			if stored[p.ID] != p.ContentHash {
				changed = append(changed, p)
			}
		}
	}
	return changed, nil
}

func (s *service) embedBatch(ctx context.Context, batch []vectorstore.Point) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.Content
	}

	vectors, err := llm.Retry(ctx, s.cfg.Retry, func(ctx context.Context) ([][]float32, error) {
		callCtx, cancel := s.callContext(ctx)
		defer cancel()
		return s.deps.Embedder.Embed(callCtx, texts)
	})
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("got %d embeddings for %d sentences", len(vectors), len(batch))
	}

	for i := range batch {
		batch[i].Embedding = vectors[i]
	}
	return nil
}
